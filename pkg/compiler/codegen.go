package compiler

import (
	"fmt"
	"strings"
)

// Registers used by the generator. a0 is the accumulator; a1 receives the
// saved operand of a binary expression.
const (
	regAcc  = "a0"
	regTmp  = "a1"
	regFP   = "fp"
	regSP   = "sp"
	regScr  = "t0"
	entryFn = "main"
)

// Bounds of an addi immediate.
const (
	minImm12 = -2048
	maxImm12 = 2047
)

// CodeGen walks an AST and emits RV64 assembly source text.
type CodeGen struct {
	out   strings.Builder
	depth int // pushes minus pops; zero between statements
}

func newCodeGen() *CodeGen {
	return &CodeGen{}
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

// ins emits one indented instruction.
func (cg *CodeGen) ins(format string, args ...any) {
	cg.line("    "+format, args...)
}

// addImm emits rd = rs + imm, going through t0 when imm does not fit in 12
// bits.
func (cg *CodeGen) addImm(rd, rs string, imm int) {
	if imm >= minImm12 && imm <= maxImm12 {
		cg.ins("addi %s, %s, %d", rd, rs, imm)
		return
	}
	cg.ins("li %s, %d", regScr, imm)
	cg.ins("add %s, %s, %s", rd, rs, regScr)
}

// push saves the accumulator on the stack.
func (cg *CodeGen) push() {
	cg.ins("addi %s, %s, -%d", regSP, regSP, wordSize)
	cg.ins("sd %s, 0(%s)", regAcc, regSP)
	cg.depth++
}

// pop restores the most recently pushed value into reg.
func (cg *CodeGen) pop(reg string) {
	cg.ins("ld %s, 0(%s)", reg, regSP)
	cg.ins("addi %s, %s, %d", regSP, regSP, wordSize)
	cg.depth--
}

// genAddr computes the address of an lvalue into the accumulator.
func (cg *CodeGen) genAddr(e Expr, loc int) error {
	if v, ok := e.(*VarRef); ok {
		cg.addImm(regAcc, regFP, v.Var.Offset)
		return nil
	}
	return &SemanticError{Loc: loc, Msg: "not an lvalue"}
}

// genExpr emits code leaving the value of e in the accumulator.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *Literal:
		cg.ins("li %s, %d", regAcc, n.Value)
		return nil

	case *NegExpr:
		if err := cg.genExpr(n.Operand); err != nil {
			return err
		}
		cg.ins("neg %s, %s", regAcc, regAcc)
		return nil

	case *VarRef:
		cg.addImm(regAcc, regFP, n.Var.Offset)
		cg.ins("ld %s, 0(%s)", regAcc, regAcc)
		return nil

	case *Assign:
		if err := cg.genAddr(n.Target, n.Loc); err != nil {
			return err
		}
		cg.push()
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.pop(regTmp)
		cg.ins("sd %s, 0(%s)", regAcc, regTmp)
		return nil

	case *BinaryExpr:
		return cg.genBinary(n)
	}

	panic(fmt.Sprintf("codegen: unhandled expression %T", e))
}

// genBinary evaluates the right operand first and parks it on the stack, so
// the left operand ends up in a0 and the right one in a1.
func (cg *CodeGen) genBinary(n *BinaryExpr) error {
	if err := cg.genExpr(n.Right); err != nil {
		return err
	}
	cg.push()
	if err := cg.genExpr(n.Left); err != nil {
		return err
	}
	cg.pop(regTmp)

	switch n.Op {
	case OpAdd:
		cg.ins("add %s, %s, %s", regAcc, regAcc, regTmp)
	case OpSub:
		cg.ins("sub %s, %s, %s", regAcc, regAcc, regTmp)
	case OpMul:
		cg.ins("mul %s, %s, %s", regAcc, regAcc, regTmp)
	case OpDiv:
		cg.ins("div %s, %s, %s", regAcc, regAcc, regTmp)
	case OpEq, OpNe:
		cg.ins("xor %s, %s, %s", regAcc, regAcc, regTmp)
		if n.Op == OpEq {
			cg.ins("seqz %s, %s", regAcc, regAcc)
		} else {
			cg.ins("snez %s, %s", regAcc, regAcc)
		}
	case OpLt:
		cg.ins("slt %s, %s, %s", regAcc, regAcc, regTmp)
	case OpLe:
		// a <= b is !(b < a)
		cg.ins("slt %s, %s, %s", regAcc, regTmp, regAcc)
		cg.ins("xori %s, %s, 1", regAcc, regAcc)
	default:
		panic(fmt.Sprintf("codegen: unhandled operator %s", n.Op))
	}
	return nil
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {
	case *ExprStmt:
		return cg.genExpr(n.Expr)
	}
	panic(fmt.Sprintf("codegen: unhandled statement %T", s))
}

// Generate lays out the frame of prog and emits the whole program as the
// body of main.
//
//	sp on entry -> +----------------+
//	               | saved fp       |
//	        fp  -> +----------------+
//	               | locals         |  fp-8, fp-16, ...
//	        sp  -> +----------------+  fp - StackSize
//	               | expression     |
//	               | temporaries    |
func Generate(prog *Program) (string, error) {
	prog.StackSize = prog.Locals.AssignOffsets()

	cg := newCodeGen()
	cg.ins(".globl %s", entryFn)
	cg.line("%s:", entryFn)

	// Prologue
	cg.ins("addi %s, %s, -%d", regSP, regSP, wordSize)
	cg.ins("sd %s, 0(%s)", regFP, regSP)
	cg.ins("mv %s, %s", regFP, regSP)
	if prog.StackSize <= -minImm12 {
		cg.ins("addi %s, %s, -%d", regSP, regSP, prog.StackSize)
	} else {
		cg.ins("li %s, %d", regScr, prog.StackSize)
		cg.ins("sub %s, %s, %s", regSP, regSP, regScr)
	}

	for _, s := range prog.Body {
		if err := cg.genStmt(s); err != nil {
			return "", err
		}
		if cg.depth != 0 {
			panic(fmt.Sprintf("codegen: stack depth %d after %s", cg.depth, s))
		}
	}

	// Epilogue
	cg.ins("mv %s, %s", regSP, regFP)
	cg.ins("ld %s, 0(%s)", regFP, regSP)
	cg.ins("addi %s, %s, %d", regSP, regSP, wordSize)
	cg.ins("ret")

	return cg.out.String(), nil
}
