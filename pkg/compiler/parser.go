package compiler

import "fmt"

// Parser consumes the flat token slice produced by the Lexer and builds an
// AST together with the table of locals it declares along the way.
//
// Grammar:
//
//	program    = stmt* EOF
//	stmt       = exprStmt
//	exprStmt   = expr ";"
//	expr       = assign
//	assign     = equality ("=" assign)?
//	equality   = relational ("==" relational | "!=" relational)*
//	relational = add ("<" add | "<=" add | ">" add | ">=" add)*
//	add        = mul ("+" mul | "-" mul)*
//	mul        = unary ("*" unary | "/" unary)*
//	unary      = ("+" | "-") unary | primary
//	primary    = "(" expr ")" | IDENT | NUM
type Parser struct {
	tokens []Token
	pos    int
	locals *SymbolTable
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, locals: NewSymbolTable()}
}

// errorAt builds a ParseError pointing at tok.
func (p *Parser) errorAt(tok Token, format string, args ...any) error {
	return &ParseError{Loc: tok.Loc, Len: tok.Len, Msg: fmt.Sprintf(format, args...)}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos]
}

// eof synthesises an EOF token for a slice that lacks one.
func (p *Parser) eof() Token {
	if n := len(p.tokens); n > 0 {
		last := p.tokens[n-1]
		return Token{Kind: EOF, Loc: last.Loc + last.Len}
	}
	return Token{Kind: EOF}
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// consume advances past the current token if it is op.
func (p *Parser) consume(op string) bool {
	if p.peek().Equal(op) {
		p.advance()
		return true
	}
	return false
}

// expect consumes the punctuator op, otherwise returns an error.
func (p *Parser) expect(op string) (Token, error) {
	tok := p.peek()
	if !tok.Equal(op) {
		return tok, p.errorAt(tok, "expect %q", op)
	}
	return p.advance(), nil
}

// parseStmt handles stmt = exprStmt.
func (p *Parser) parseStmt() (Stmt, error) {
	return p.parseExprStmt()
}

// parseExprStmt handles exprStmt = expr ";".
func (p *Parser) parseExprStmt() (Stmt, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

// parseExpr is the entry point for expression parsing.
func (p *Parser) parseExpr() (Expr, error) {
	return p.parseAssign()
}

// parseAssign handles "=". The right side recurses into parseAssign so that
// a = b = c groups as a = (b = c).
func (p *Parser) parseAssign() (Expr, error) {
	expr, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Equal("=") {
		p.advance()
		value, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &Assign{Target: expr, Value: value, Loc: tok.Loc}, nil
	}
	return expr, nil
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	expr, err := p.parseRelational()
	if err != nil {
		return nil, err
	}

	for {
		var op BinaryOp
		switch {
		case p.consume("=="):
			op = OpEq
		case p.consume("!="):
			op = OpNe
		default:
			return expr, nil
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
}

// parseRelational handles <, <=, > and >=. The last two are stored as < and
// <= with the operands swapped.
func (p *Parser) parseRelational() (Expr, error) {
	expr, err := p.parseAdd()
	if err != nil {
		return nil, err
	}

	for {
		var op BinaryOp
		swap := false
		switch {
		case p.consume("<"):
			op = OpLt
		case p.consume("<="):
			op = OpLe
		case p.consume(">"):
			op, swap = OpLt, true
		case p.consume(">="):
			op, swap = OpLe, true
		default:
			return expr, nil
		}
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		if swap {
			expr = &BinaryExpr{Op: op, Left: right, Right: expr}
		} else {
			expr = &BinaryExpr{Op: op, Left: expr, Right: right}
		}
	}
}

// parseAdd handles + and -
func (p *Parser) parseAdd() (Expr, error) {
	expr, err := p.parseMul()
	if err != nil {
		return nil, err
	}

	for {
		var op BinaryOp
		switch {
		case p.consume("+"):
			op = OpAdd
		case p.consume("-"):
			op = OpSub
		default:
			return expr, nil
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
}

// parseMul handles * and /
func (p *Parser) parseMul() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		var op BinaryOp
		switch {
		case p.consume("*"):
			op = OpMul
		case p.consume("/"):
			op = OpDiv
		default:
			return expr, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
}

// parseUnary handles prefix + and -
func (p *Parser) parseUnary() (Expr, error) {
	if p.consume("+") {
		return p.parseUnary()
	}
	if p.consume("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NegExpr{Operand: operand}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles literals, variables, and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch {
	case tok.Equal("("):
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case tok.Kind == IDENT:
		p.advance()
		v, _ := p.locals.Allocate(tok.Lexeme)
		return &VarRef{Var: v}, nil

	case tok.Kind == NUM:
		p.advance()
		return &Literal{Value: tok.Value}, nil

	default:
		return nil, p.errorAt(tok, "expected an expression")
	}
}

// Parse is the top-level entry point. tokens must come from Lex.
func Parse(tokens []Token) (*Program, error) {
	p := NewParser(tokens)
	prog := &Program{Locals: p.locals}

	for p.peek().Kind != EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmt)
	}

	// Anything after the EOF marker is left over from a bad token slice.
	if p.pos+1 < len(p.tokens) {
		return nil, p.errorAt(p.tokens[p.pos+1], "extra token")
	}
	return prog, nil
}
