package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"rvcc/pkg/compiler"
	"rvcc/pkg/cpu"
	"rvcc/pkg/runner"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: rvcc [flags] <program>\n")
	fmt.Fprintf(os.Stderr, "       rvcc [flags] -f <file|->\n")
	fmt.Fprintf(os.Stderr, "       rvcc -repl\n")
	flag.PrintDefaults()
}

func main() {
	outPath := flag.String("o", "-", "write assembly to `path` (\"-\" for stdout)")
	inPath := flag.String("f", "", "read the program from `file` (\"-\" for stdin)")
	dumpTokens := flag.Bool("dump-tokens", false, "print the token stream to stderr")
	dumpAST := flag.Bool("dump-ast", false, "print the parsed statements to stderr")
	dumpSyms := flag.Bool("dump-syms", false, "print the frame layout to stderr")
	runProgram := flag.Bool("run", false, "execute on the emulator; exit status is a0")
	repl := flag.Bool("repl", false, "start an interactive session")
	flag.Usage = usage
	flag.Parse()

	if *repl {
		os.Exit(cmdRepl())
	}

	src, err := readSource(*inPath, flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "rvcc:", err)
		usage()
		os.Exit(1)
	}

	if *dumpTokens {
		tokens, err := compiler.Lex(src)
		if err != nil {
			fail(err, src)
		}
		fmt.Fprintf(os.Stderr, "Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Fprintln(os.Stderr, " ", tok)
		}
	}

	prog, assembly, err := compiler.CompileProgram(src)
	if err != nil {
		fail(err, src)
	}

	if *dumpAST {
		fmt.Fprintln(os.Stderr, "AST")
		for _, s := range prog.Body {
			fmt.Fprintln(os.Stderr, " ", s)
		}
	}
	if *dumpSyms {
		fmt.Fprint(os.Stderr, prog.Locals)
		fmt.Fprintf(os.Stderr, "Stack size: %d\n", prog.StackSize)
	}

	if *runProgram {
		h, err := runner.Execute(assembly, runner.DefaultMaxSteps)
		if err != nil {
			log.Fatalf("rvcc: %v", err)
		}
		os.Exit(int(h.Reg(cpu.RegA0) & 0xFF))
	}

	out, err := openOutput(*outPath)
	if err != nil {
		log.Fatalf("rvcc: %v", err)
	}
	if _, err := io.WriteString(out, assembly); err != nil {
		log.Fatalf("rvcc: write %s: %v", *outPath, err)
	}
	if out != os.Stdout {
		if err := out.Close(); err != nil {
			log.Fatalf("rvcc: close %s: %v", *outPath, err)
		}
	}
}

// readSource takes the program from -f, or else from the single positional
// argument. "-" in either place means stdin.
func readSource(path string, args []string) (string, error) {
	if path == "" && len(args) == 1 && args[0] == "-" {
		path = "-"
	}
	switch {
	case path == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", fmt.Errorf("invalid number of arguments")
}

// openOutput returns stdout for "" or "-", otherwise creates path.
func openOutput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open output file: %s: %w", path, err)
	}
	return out, nil
}

// fail prints a caret diagnostic and exits. No partial output is written.
func fail(err error, src string) {
	fmt.Fprintln(os.Stderr, compiler.Diagnose(err, src))
	os.Exit(1)
}
