package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// LexError reports a byte the lexer could not classify.
type LexError struct {
	Loc int
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Loc, e.Msg)
}

// ParseError reports a grammar violation at the offending token.
type ParseError struct {
	Loc int
	Len int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Loc, e.Msg)
}

// SemanticError reports a well-formed expression used where it is not
// allowed, such as assigning to something that is not a variable.
type SemanticError struct {
	Loc int
	Msg string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at offset %d: %s", e.Loc, e.Msg)
}

// errorLoc extracts the source offset carried by one of the pipeline errors.
func errorLoc(err error) (int, string, bool) {
	var lexErr *LexError
	var parseErr *ParseError
	var semErr *SemanticError
	switch {
	case errors.As(err, &lexErr):
		return lexErr.Loc, lexErr.Msg, true
	case errors.As(err, &parseErr):
		return parseErr.Loc, parseErr.Msg, true
	case errors.As(err, &semErr):
		return semErr.Loc, semErr.Msg, true
	}
	return 0, "", false
}

// Diagnostic is a located error rendered against its source. It unwraps to
// the pipeline error it was built from.
type Diagnostic struct {
	Snippet string
	Err     error
}

func (d *Diagnostic) Error() string { return d.Snippet }

func (d *Diagnostic) Unwrap() error { return d.Err }

// Diagnose renders err against src as the offending line followed by a caret
// under the error column:
//
//	a = 1 +;
//	       ^ expected an expression
//
// Errors that carry no source location are returned unchanged.
func Diagnose(err error, src string) error {
	loc, msg, ok := errorLoc(err)
	if !ok {
		return err
	}
	return &Diagnostic{Snippet: caretSnippet(src, loc, msg), Err: err}
}

func caretSnippet(src string, loc int, msg string) string {
	if loc < 0 {
		loc = 0
	}
	if loc > len(src) {
		loc = len(src)
	}

	start := strings.LastIndexByte(src[:loc], '\n') + 1
	end := strings.IndexByte(src[loc:], '\n')
	if end < 0 {
		end = len(src)
	} else {
		end += loc
	}

	var b strings.Builder
	b.WriteString(src[start:end])
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", loc-start))
	b.WriteString("^ ")
	b.WriteString(msg)
	return b.String()
}
