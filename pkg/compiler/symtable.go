package compiler

import (
	"fmt"
	"strings"
)

// wordSize is the size in bytes of every value: one RV64 register.
const wordSize = 8

// stackAlign is the stack alignment the RISC-V psABI requires.
const stackAlign = 16

// Variable is a named local slot in the frame of the implicit main function.
type Variable struct {
	Name   string
	Offset int // offset from fp, assigned by AssignOffsets
}

// SymbolTable maps variable names to frame slots. There is a single scope
// covering the whole program: the first use of a name declares it.
// Allocation order is preserved because it decides the frame layout.
type SymbolTable struct {
	vars   []*Variable
	byName map[string]*Variable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Variable)}
}

// Allocate returns the variable called name, creating it if this is the first
// occurrence. The second result reports whether it already existed.
func (s *SymbolTable) Allocate(name string) (*Variable, bool) {
	if v, ok := s.byName[name]; ok {
		return v, true
	}
	v := &Variable{Name: name}
	s.vars = append(s.vars, v)
	s.byName[name] = v
	return v, false
}

// Lookup returns the variable and whether it was found.
func (s *SymbolTable) Lookup(name string) (*Variable, bool) {
	v, ok := s.byName[name]
	return v, ok
}

// Vars returns the variables in allocation order.
func (s *SymbolTable) Vars() []*Variable {
	return s.vars
}

func (s *SymbolTable) Len() int {
	return len(s.vars)
}

// AssignOffsets lays the variables out below fp in allocation order, one
// word each, and returns the frame size rounded up to the stack alignment.
func (s *SymbolTable) AssignOffsets() int {
	offset := 0
	for _, v := range s.vars {
		offset += wordSize
		v.Offset = -offset
	}
	return AlignTo(offset, stackAlign)
}

// AlignTo rounds n up to the nearest multiple of align.
func AlignTo(n, align int) int {
	return (n + align - 1) / align * align
}

// String returns a dump of the table in allocation order.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.vars) == 0 {
		sb.WriteString("Locals: (empty)\n")
		return sb.String()
	}
	sb.WriteString("Locals:\n")
	for _, v := range s.vars {
		fmt.Fprintf(&sb, "  %-20s  Offset: %d\n", v.Name, v.Offset)
	}
	return sb.String()
}
