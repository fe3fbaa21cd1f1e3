package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"rvcc/pkg/compiler"
	"rvcc/pkg/cpu"
	"rvcc/pkg/runner"
)

const (
	historyFile = ".rvcc_history"
	promptMain  = "rvcc> "
	promptCont  = "....> "
)

// session accumulates the statements entered so far. Each new input is
// compiled together with them so variables keep their values.
type session struct {
	program  string
	assembly string
}

// eval compiles the session plus input and runs it. On failure the session
// is left as it was.
func (s *session) eval(input string) (int64, error) {
	src := s.program + input + "\n"
	assembly, err := compiler.Compile(src)
	if err != nil {
		return 0, compiler.Diagnose(err, src)
	}
	h, err := runner.Execute(assembly, runner.DefaultMaxSteps)
	if err != nil {
		return 0, err
	}
	s.program = src
	s.assembly = assembly
	return h.Reg(cpu.RegA0), nil
}

func cmdRepl() int {
	fmt.Println("rvcc interactive. Statements end with ';'. Commands: :asm :src :reset :quit")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	var s session
	for {
		code, ok := readStatement(ln)
		if !ok {
			fmt.Println()
			return 0
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit":
				return 0
			case ":asm":
				fmt.Print(s.assembly)
			case ":src":
				fmt.Print(s.program)
			case ":reset":
				s = session{}
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}

		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		val, err := s.eval(code)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Println(val)
	}
}

// prompter is the part of *liner.State the statement reader needs.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// readStatement keeps prompting while the input so far only fails because
// it ends too early, such as a missing ';'. Any prompt error ends the
// session.
func readStatement(ln prompter) (string, bool) {
	var b strings.Builder

	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(os.Stderr, err)
			}
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !isIncomplete(src) {
			return src, true
		}
	}
}

// isIncomplete reports whether src fails to parse only because input ran
// out.
func isIncomplete(src string) bool {
	tokens, err := compiler.Lex(src)
	if err != nil {
		return false
	}
	_, err = compiler.Parse(tokens)
	var perr *compiler.ParseError
	if errors.As(err, &perr) {
		return perr.Loc >= len(strings.TrimRight(src, " \t\r\n"))
	}
	return false
}
