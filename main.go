package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"rvcc/pkg/asm"
	"rvcc/pkg/compiler"
	"rvcc/pkg/cpu"
	"rvcc/pkg/runner"
	"rvcc/pkg/utils"
)

func main() {
	inPath := flag.String("in", "", "input file path (.s is assembled, anything else is compiled first)")
	outPath := flag.String("out", "", "output binary file path (default: input with .bin extension)")
	runProgram := flag.Bool("run", false, "run the generated binary file on the emulator")
	runBinPath := flag.String("run-bin", "", "run an existing binary file on the emulator")
	maxSteps := flag.Int("max-steps", runner.DefaultMaxSteps, "instruction limit for a run")
	flag.Parse()

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	assembledOutput := ""
	if *inPath != "" {
		source, err := os.ReadFile(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", *inPath, err)
			os.Exit(1)
		}

		code, err := build(*inPath, string(source))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" {
			output = utils.ReplaceExt(*inPath, ".bin")
		}

		if err := writeBinary(output, code); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write binary file %q: %v\n", output, err)
			os.Exit(1)
		}

		if full, _, err := utils.GetPathInfo(output); err == nil {
			output = full
		}
		fmt.Printf("assembled %d bytes -> %s\n", len(code), output)
		assembledOutput = output
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to assemble, -run to run assembled output, or -run-bin <file> to run an existing binary")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = assembledOutput
	default:
		return
	}

	if err := runBinary(runTarget, *maxSteps); err != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", runTarget, err)
		os.Exit(1)
	}
}

// build turns source into a flat image whose entry point is address 0.
func build(path, source string) ([]byte, error) {
	if !strings.HasSuffix(path, ".s") {
		assembly, err := compiler.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("compilation failed:\n%v", compiler.Diagnose(err, source))
		}
		source = assembly
	}

	a := asm.NewAssembler()
	code, _, err := a.Assemble(source)
	if err != nil {
		return nil, fmt.Errorf("assembly failed: %v", err)
	}
	if entry, ok := a.Label(runner.EntryLabel); ok && entry != 0 {
		return nil, fmt.Errorf("assembly failed: %s must be at address 0, found 0x%X", runner.EntryLabel, entry)
	}
	return code, nil
}

func writeBinary(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func readBinary(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func runBinary(path string, maxSteps int) error {
	loadedBytes, err := readBinary(path)
	if err != nil {
		return err
	}

	h, err := runner.ExecuteImage(loadedBytes, 0, maxSteps)
	if err != nil {
		return err
	}

	fmt.Printf(
		"run complete (%s): steps=%d SP=0x%X FP=0x%X A0=%d A1=%d\n",
		path,
		h.Steps,
		h.X[cpu.RegSP],
		h.X[cpu.RegFP],
		h.Reg(cpu.RegA0),
		h.Reg(cpu.RegA1),
	)

	return nil
}
