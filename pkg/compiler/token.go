package compiler

import "fmt"

// TokenKind identifies the category of a lexed token.
type TokenKind int

const (
	IDENT TokenKind = iota // identifier
	PUNCT                  // punctuator
	NUM                    // decimal integer literal
	EOF                    // sentinel: end of input
)

var tokenKindNames = [...]string{
	IDENT: "IDENT",
	PUNCT: "PUNCT",
	NUM:   "NUM",
	EOF:   "EOF",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Kind   TokenKind
	Lexeme string // the exact source text that was matched
	Loc    int    // byte offset of the first character
	Len    int    // length in bytes
	Value  int64  // if Kind is NUM, its value
}

// Equal reports whether the token's text is exactly op.
func (t Token) Equal(op string) bool {
	return t.Kind != EOF && t.Lexeme == op
}

func (t Token) String() string {
	return fmt.Sprintf("%-6s %-8q  at %d", t.Kind, t.Lexeme, t.Loc)
}
