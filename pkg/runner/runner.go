// Package runner assembles compiler output and executes it on the RV64
// emulator, returning the value main leaves in a0.
package runner

import (
	"fmt"

	"rvcc/pkg/asm"
	"rvcc/pkg/compiler"
	"rvcc/pkg/cpu"
)

// EntryLabel is the symbol execution starts at.
const EntryLabel = "main"

// DefaultMaxSteps bounds a run so that a miscompiled jump cannot hang.
const DefaultMaxSteps = 1_000_000

// Execute assembles assembly, calls its main label and runs it to
// completion.
func Execute(assembly string, maxSteps int) (*cpu.Hart, error) {
	a := asm.NewAssembler()
	image, _, err := a.Assemble(assembly)
	if err != nil {
		return nil, fmt.Errorf("assembly error: %w", err)
	}

	entry, ok := a.Label(EntryLabel)
	if !ok {
		return nil, fmt.Errorf("assembly error: no %q label", EntryLabel)
	}

	return ExecuteImage(image, entry, maxSteps)
}

// ExecuteImage runs an already assembled image starting at entry.
func ExecuteImage(image []byte, entry uint64, maxSteps int) (*cpu.Hart, error) {
	h := cpu.NewHart(cpu.DefaultMemorySize)
	if err := h.Load(image, entry); err != nil {
		return nil, err
	}
	if err := h.Run(maxSteps); err != nil {
		return h, fmt.Errorf("run error at pc 0x%X: %w", h.PC, err)
	}
	return h, nil
}

// Run compiles src, executes it and returns a0.
func Run(src string) (int64, error) {
	assembly, err := compiler.Compile(src)
	if err != nil {
		return 0, err
	}
	h, err := Execute(assembly, DefaultMaxSteps)
	if err != nil {
		return 0, err
	}
	return h.Reg(cpu.RegA0), nil
}
