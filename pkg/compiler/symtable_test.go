package compiler

import (
	"strings"
	"testing"
)

func TestSymbolTable(t *testing.T) {
	t.Run("Allocation", func(t *testing.T) {
		s := NewSymbolTable()
		a, existed := s.Allocate("a")
		if existed {
			t.Error("a: expected a new variable")
		}
		again, existed := s.Allocate("a")
		if !existed || again != a {
			t.Error("a: second Allocate must return the existing variable")
		}
		if s.Len() != 1 {
			t.Errorf("expected 1 variable, got %d", s.Len())
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		s := NewSymbolTable()
		x, _ := s.Allocate("x")
		if got, ok := s.Lookup("x"); !ok || got != x {
			t.Error("x: lookup failed")
		}
		if _, ok := s.Lookup("y"); ok {
			t.Error("y: expected lookup to fail")
		}
	})

	t.Run("Offsets", func(t *testing.T) {
		s := NewSymbolTable()
		a, _ := s.Allocate("a")
		b, _ := s.Allocate("b")
		c, _ := s.Allocate("c")

		size := s.AssignOffsets()
		if a.Offset != -8 {
			t.Errorf("a offset: expected -8, got %d", a.Offset)
		}
		if b.Offset != -16 {
			t.Errorf("b offset: expected -16, got %d", b.Offset)
		}
		if c.Offset != -24 {
			t.Errorf("c offset: expected -24, got %d", c.Offset)
		}
		if size != 32 {
			t.Errorf("frame size: expected 32, got %d", size)
		}
	})

	t.Run("FrameAlignment", func(t *testing.T) {
		for n, want := range []int{0, 16, 16, 32, 32, 48} {
			s := NewSymbolTable()
			for i := 0; i < n; i++ {
				s.Allocate(string(rune('a' + i)))
			}
			if got := s.AssignOffsets(); got != want {
				t.Errorf("%d locals: expected frame %d, got %d", n, want, got)
			}
		}
	})

	t.Run("String", func(t *testing.T) {
		s := NewSymbolTable()
		if got := s.String(); got != "Locals: (empty)\n" {
			t.Errorf("empty table: got %q", got)
		}
		s.Allocate("n")
		s.AssignOffsets()
		want := "Locals:\n  n" + strings.Repeat(" ", 21) + "Offset: -8\n"
		if got := s.String(); got != want {
			t.Errorf("got %q, expected %q", got, want)
		}
	})
}

func TestAlignTo(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 16, 0},
		{1, 16, 16},
		{8, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{5, 8, 8},
	}
	for _, tt := range tests {
		if got := AlignTo(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignTo(%d, %d) = %d, expected %d", tt.n, tt.align, got, tt.want)
		}
	}
}
