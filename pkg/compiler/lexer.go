package compiler

import (
	"strconv"
	"strings"
)

// multiPuncts are tried before single-character punctuation so that "<=" is
// never split into "<" and "=".
var multiPuncts = []string{"==", "!=", "<=", ">="}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src string
	pos int // index of the next byte to consume
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// isPunct matches the ASCII punctuation set of C's ispunct.
func isPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') ||
		(c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && isSpace(l.peek()) {
		l.pos++
	}
}

// scanNum collects a decimal literal. The first digit must still be at
// l.peek().
func (l *Lexer) scanNum() (Token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.pos++
	}
	lexeme := l.src[start:l.pos]
	val, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return Token{}, &LexError{Loc: start, Msg: "integer literal out of range"}
	}
	return Token{Kind: NUM, Lexeme: lexeme, Loc: start, Len: l.pos - start, Value: val}, nil
}

// scanIdent collects the maximal identifier run starting at l.peek().
func (l *Lexer) scanIdent() Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.pos++
	}
	return Token{Kind: IDENT, Lexeme: l.src[start:l.pos], Loc: start, Len: l.pos - start}
}

// readPunct returns the length of the punctuator at the current position, or
// zero when there is none.
func (l *Lexer) readPunct() int {
	rest := l.src[l.pos:]
	for _, op := range multiPuncts {
		if strings.HasPrefix(rest, op) {
			return len(op)
		}
	}
	if isPunct(l.peek()) {
		return 1
	}
	return 0
}

// nextToken skips whitespace and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Loc: l.pos}, nil
	}

	ch := l.peek()
	if isDigit(ch) {
		return l.scanNum()
	}
	if isIdentStart(ch) {
		return l.scanIdent(), nil
	}

	if n := l.readPunct(); n > 0 {
		start := l.pos
		l.pos += n
		return Token{Kind: PUNCT, Lexeme: l.src[start:l.pos], Loc: start, Len: n}, nil
	}

	return Token{}, &LexError{Loc: l.pos, Msg: "invalid token"}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It stops at the first byte that cannot start a token.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}
