package compiler

import (
	"fmt"
	"math"
	"testing"

	"rvcc/pkg/asm"
	"rvcc/pkg/cpu"
)

// runCode compiles source, assembles it and runs main on the emulator,
// returning the final a0.
func runCode(t *testing.T, source string) int64 {
	t.Helper()

	// Lex -> Parse -> Generate
	tokens, err := Lex(source)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	prog, err := Parse(tokens)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	assembly, err := Generate(prog)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Assemble
	a := asm.NewAssembler()
	machineCode, _, err := a.Assemble(assembly)
	if err != nil {
		t.Fatalf("Assemble failed: %v\nAssembly:\n%s", err, assembly)
	}
	entry, ok := a.Label("main")
	if !ok {
		t.Fatalf("no main label in:\n%s", assembly)
	}

	// Run with a limit to avoid infinite loops
	vm := cpu.NewHart(cpu.DefaultMemorySize)
	if err := vm.Load(machineCode, entry); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := vm.Run(100000); err != nil {
		t.Fatalf("Run failed: %v\nAssembly:\n%s", err, assembly)
	}

	if got := vm.X[cpu.RegSP]; got != uint64(len(vm.Memory)) {
		t.Errorf("sp not restored: 0x%X", got)
	}
	return vm.Reg(cpu.RegA0)
}

func TestE2EArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected int64
	}{
		{"Literal", "0;", 0},
		{"Literal 42", "42;", 42},
		{"Add Sub", "5+20-4;", 21},
		{"Spaces", " 12 + 34 - 5 ;", 41},
		{"Precedence", "1+2*3;", 7},
		{"Parentheses", "(1+2)*3;", 9},
		{"Mixed", "5+6*7;", 47},
		{"Nested Parens", "5*(9-6);", 15},
		{"Division", "(3+5)/2;", 4},
		{"Truncating Division", "5/2;", 2},
		{"Negative Division", "-7/2;", -3},
		{"Unary Minus", "-10+20;", 10},
		{"Double Minus", "- -10;", 10},
		{"Unary Mix", "- - +10;", 10},
		{"Left Associative", "10-3-2;", 5},
		{"Divide By Zero", "1/0;", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runCode(t, tt.source); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestE2EComparison(t *testing.T) {
	tests := []struct {
		source   string
		expected int64
	}{
		{"0==1;", 0},
		{"42==42;", 1},
		{"0!=1;", 1},
		{"42!=42;", 0},
		{"0<1;", 1},
		{"1<1;", 0},
		{"2<1;", 0},
		{"0<=1;", 1},
		{"1<=1;", 1},
		{"2<=1;", 0},
		{"1>0;", 1},
		{"1>1;", 0},
		{"1>2;", 0},
		{"1>=0;", 1},
		{"1>=1;", 1},
		{"1>=2;", 0},
		{"-1<0;", 1},
		{"-1>=0;", 0},
		{"1<2==1;", 1},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := runCode(t, tt.source); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

// TestE2EComparisonSymmetry checks that a > b matches b < a and a >= b
// matches b <= a for a spread of operands.
func TestE2EComparisonSymmetry(t *testing.T) {
	values := []int{-3, 0, 2, 7}
	for _, a := range values {
		for _, b := range values {
			gt := runCode(t, fmtPair(a, ">", b))
			lt := runCode(t, fmtPair(b, "<", a))
			if gt != lt {
				t.Errorf("%d > %d gave %d, %d < %d gave %d", a, b, gt, b, a, lt)
			}
			ge := runCode(t, fmtPair(a, ">=", b))
			le := runCode(t, fmtPair(b, "<=", a))
			if ge != le {
				t.Errorf("%d >= %d gave %d, %d <= %d gave %d", a, b, ge, b, a, le)
			}
		}
	}
}

func fmtPair(a int, op string, b int) string {
	return fmt.Sprintf("(%d)%s(%d);", a, op, b)
}

func TestE2EVariables(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected int64
	}{
		{"Single", "a=3; a;", 3},
		{"Two", "a=3; b=5; a+b;", 8},
		{"Long Names", "foo=3; bar=5; foo*bar;", 15},
		{"Chained Assign", "a=b=3; a;", 3},
		{"Chained Assign Second", "a=b=3; b;", 3},
		{"Assign Value", "a=7;", 7},
		{"Reassign", "a=1; a=a+1; a=a*10; a;", 20},
		{"Uninitialised Read", "a;", 0},
		{"Many Locals", "a=1;b=2;c=3;d=4;e=5;a+b+c+d+e;", 15},
		{"Comparison Result", "x=5; y=x>3; y;", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runCode(t, tt.source); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestE2ELargeLiterals(t *testing.T) {
	tests := []struct {
		source   string
		expected int64
	}{
		{"2047;", 2047},
		{"2048;", 2048},
		{"4096;", 4096},
		{"2147483647;", math.MaxInt32},
		{"2147483648;", math.MaxInt32 + 1},
		{"4294967296;", 1 << 32},
		{"81985529216486895;", 0x0123456789ABCDEF},
		{"9223372036854775807;", math.MaxInt64},
		{"-9223372036854775807-1;", math.MinInt64},
		{"-2147483648;", math.MinInt32},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := runCode(t, tt.source); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestE2EEmptyProgram(t *testing.T) {
	if got := runCode(t, ""); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestE2ELargeFrame(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected int64
	}{
		{"Edges", manyLocals(300) + "v299 + v0;", 299},
		{"Last Near Slot", manyLocals(300) + "v255;", 255},
		{"First Far Slot", manyLocals(300) + "v256;", 256},
		{"Reassign Far", manyLocals(300) + "v290 = v10 * 3; v290 + v299;", 329},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runCode(t, tt.source); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}
