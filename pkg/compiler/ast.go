package compiler

import (
	"fmt"
	"strings"
)

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves the result in a0.
type Expr interface {
	exprNode()
	String() string
}

// Literal is a compile-time integer constant.
//
//	a = 10;
//	    ^^  Literal{Value: 10}
type Literal struct {
	Value int64
}

func (*Literal) exprNode()        {}
func (l *Literal) String() string { return fmt.Sprintf("%d", l.Value) }

// NegExpr is unary minus. Unary plus produces no node.
type NegExpr struct {
	Operand Expr
}

func (*NegExpr) exprNode()        {}
func (n *NegExpr) String() string { return fmt.Sprintf("(neg %s)", n.Operand) }

// VarRef is a use of a local variable. The Variable is owned by the
// program's SymbolTable; the node only refers to it.
//
//	a + 1;
//	^  VarRef{Var: a}
type VarRef struct {
	Var *Variable
}

func (*VarRef) exprNode()        {}
func (v *VarRef) String() string { return v.Var.Name }

// Assign stores Value into Target and yields the stored value.
// Assignment is right-associative: a = b = 3 is Assign{a, Assign{b, 3}}.
type Assign struct {
	Target Expr
	Value  Expr
	Loc    int // offset of the "=" token
}

func (*Assign) exprNode() {}
func (a *Assign) String() string {
	return fmt.Sprintf("(= %s %s)", a.Target, a.Value)
}

// BinaryOp enumerates the binary operators. There is no greater-than: the
// parser rewrites a > b as b < a and a >= b as b <= a.
type BinaryOp int

const (
	OpAdd BinaryOp = iota // +
	OpSub                 // -
	OpMul                 // *
	OpDiv                 // /
	OpEq                  // ==
	OpNe                  // !=
	OpLt                  // <
	OpLe                  // <=
)

var binaryOpNames = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
}

func (op BinaryOp) String() string {
	if int(op) >= 0 && int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// BinaryExpr represents a binary operation: Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Op, b.Left, b.Right)
}

//  Statement nodes

// Stmt is implemented by every statement node.
type Stmt interface {
	stmtNode()
	String() string
}

// ExprStmt is an expression evaluated for its effect; the value stays in a0.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode()        {}
func (s *ExprStmt) String() string { return s.Expr.String() + ";" }

// Program is the result of parsing: the statements of the implicit main
// function and its locals. StackSize is filled in by the code generator.
type Program struct {
	Body      []Stmt
	Locals    *SymbolTable
	StackSize int
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, s := range p.Body {
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
