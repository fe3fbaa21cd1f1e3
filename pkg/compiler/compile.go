package compiler

// Compile runs the whole pipeline over src and returns the assembly text.
func Compile(src string) (string, error) {
	_, assembly, err := CompileProgram(src)
	return assembly, err
}

// CompileProgram is Compile but also returns the parsed program, with its
// frame layout filled in, for callers that want to inspect it.
func CompileProgram(src string) (*Program, string, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, "", err
	}

	prog, err := Parse(tokens)
	if err != nil {
		return nil, "", err
	}

	assembly, err := Generate(prog)
	if err != nil {
		return prog, "", err
	}
	return prog, assembly, nil
}
