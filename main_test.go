package main

import (
	"path/filepath"
	"strings"
	"testing"

	"rvcc/pkg/cpu"
	"rvcc/pkg/runner"
)

func TestBuildAndRunBinary(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		source string
		want   int64
	}{
		{"Compiled", "prog.c", "a = 20; b = 22; a + b;", 42},
		{"Assembled", "prog.s", "main:\n    li a0, -7\n    ret\n", -7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := build(tt.path, tt.source)
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}

			out := filepath.Join(t.TempDir(), "prog.bin")
			if err := writeBinary(out, code); err != nil {
				t.Fatalf("writeBinary failed: %v", err)
			}
			loaded, err := readBinary(out)
			if err != nil {
				t.Fatalf("readBinary failed: %v", err)
			}

			h, err := runner.ExecuteImage(loaded, 0, 1000)
			if err != nil {
				t.Fatalf("ExecuteImage failed: %v", err)
			}
			if got := h.Reg(cpu.RegA0); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}

			if err := runBinary(out, 1000); err != nil {
				t.Errorf("runBinary failed: %v", err)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		source  string
		wantSub string
	}{
		{"Compile Error", "bad.c", "1 +;", "^ expected an expression"},
		{"Assembly Error", "bad.s", "main:\n    frob a0\n", "assembly failed"},
		{"Main Not First", "late.s", "helper:\n    ret\nmain:\n    ret\n", "must be at address 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(tt.path, tt.source)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}
