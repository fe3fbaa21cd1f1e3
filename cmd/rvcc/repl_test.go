package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestIsIncomplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"a = 1", true},
		{"a = 1 +", true},
		{"(1 + 2", true},
		{"a = 1;", false},
		{"1 +;", false},
		{"1 2;", false},
		{"a = 1\n", true},
		{"1 \x01", false},
	}
	for _, tt := range tests {
		if got := isIncomplete(tt.src); got != tt.want {
			t.Errorf("isIncomplete(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

type scriptedPrompter struct {
	lines []string
	err   error
	calls int
}

func (p *scriptedPrompter) Prompt(string) (string, error) {
	p.calls++
	if len(p.lines) == 0 {
		return "", p.err
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func TestReadStatement(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		err       error
		wantCode  string
		wantOK    bool
		wantCalls int
	}{
		{"Single Line", []string{"a = 1;"}, io.EOF, "a = 1;", true, 1},
		{"Continued", []string{"a = 1 +", "2;"}, io.EOF, "a = 1 +\n2;", true, 2},
		{"EOF", nil, io.EOF, "", false, 1},
		{"Persistent Error", nil, errors.New("terminal gone"), "", false, 1},
		{"Error Mid Statement", []string{"a = 1 +"}, errors.New("terminal gone"), "", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedPrompter{lines: tt.lines, err: tt.err}
			code, ok := readStatement(p)
			if code != tt.wantCode || ok != tt.wantOK {
				t.Errorf("readStatement() = %q, %v, want %q, %v", code, ok, tt.wantCode, tt.wantOK)
			}
			if p.calls != tt.wantCalls {
				t.Errorf("Prompt called %d times, want %d", p.calls, tt.wantCalls)
			}
		})
	}
}

func TestSessionKeepsVariables(t *testing.T) {
	var s session
	steps := []struct {
		input string
		want  int64
	}{
		{"a = 3;", 3},
		{"b = a * 2;", 6},
		{"a + b;", 9},
	}
	for _, st := range steps {
		got, err := s.eval(st.input)
		if err != nil {
			t.Fatalf("eval(%q) failed: %v", st.input, err)
		}
		if got != st.want {
			t.Errorf("eval(%q) = %d, want %d", st.input, got, st.want)
		}
	}
}

func TestSessionErrorLeavesStateUnchanged(t *testing.T) {
	var s session
	if _, err := s.eval("a = 4;"); err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	before := s.program
	if _, err := s.eval("1 = a;"); err == nil {
		t.Fatal("expected an error")
	}
	if s.program != before {
		t.Errorf("program changed after error: %q", s.program)
	}
	got, err := s.eval("a;")
	if err != nil || got != 4 {
		t.Errorf("eval(a) = %d, %v", got, err)
	}
}

func TestReadSource(t *testing.T) {
	src, err := readSource("", []string{"1+2;"})
	if err != nil || src != "1+2;" {
		t.Errorf("positional: got %q, %v", src, err)
	}

	path := filepath.Join(t.TempDir(), "prog.c")
	if err := os.WriteFile(path, []byte("a=1;\na;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err = readSource(path, nil)
	if err != nil || src != "a=1;\na;\n" {
		t.Errorf("file: got %q, %v", src, err)
	}

	if _, err := readSource("", nil); err == nil {
		t.Error("expected an error with no arguments")
	}
	if _, err := readSource("", []string{"1;", "2;"}); err == nil {
		t.Error("expected an error with two arguments")
	}
}
