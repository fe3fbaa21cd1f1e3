// Package compiler provides the lexer, parser, and code generator for a tiny
// expression language that targets RV64 assembly.
//
// Pipeline: source → Lex → Parse → Generate → RISC-V assembly text
//
// A program is a list of expression statements evaluated in the body of an
// implicit main function. Variables are declared by their first use and live
// in main's stack frame; the value of the last statement is left in a0.
package compiler
