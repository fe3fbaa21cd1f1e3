package asm

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"unicode"

	"rvcc/pkg/cpu"
)

type rOp struct {
	funct3 uint32
	funct7 uint32
}

var rTypeOps = map[string]rOp{
	"add":  {cpu.F3AddSub, cpu.F7Base},
	"sub":  {cpu.F3AddSub, cpu.F7Alt},
	"sll":  {cpu.F3Sll, cpu.F7Base},
	"slt":  {cpu.F3Slt, cpu.F7Base},
	"sltu": {cpu.F3Sltu, cpu.F7Base},
	"xor":  {cpu.F3Xor, cpu.F7Base},
	"srl":  {cpu.F3Srl, cpu.F7Base},
	"sra":  {cpu.F3Srl, cpu.F7Alt},
	"or":   {cpu.F3Or, cpu.F7Base},
	"and":  {cpu.F3And, cpu.F7Base},
	"mul":  {cpu.F3Mul, cpu.F7MulDiv},
	"div":  {cpu.F3Div, cpu.F7MulDiv},
	"rem":  {cpu.F3Rem, cpu.F7MulDiv},
}

type iOp struct {
	opcode uint32
	funct3 uint32
}

var iTypeOps = map[string]iOp{
	"addi":  {cpu.OpImm, cpu.F3AddSub},
	"addiw": {cpu.OpImm32, cpu.F3AddSub},
	"slti":  {cpu.OpImm, cpu.F3Slt},
	"sltiu": {cpu.OpImm, cpu.F3Sltu},
	"xori":  {cpu.OpImm, cpu.F3Xor},
	"ori":   {cpu.OpImm, cpu.F3Or},
	"andi":  {cpu.OpImm, cpu.F3And},
}

// shiftOp.high holds the immediate bits above the 6-bit shift amount.
type shiftOp struct {
	funct3 uint32
	high   uint32
}

var shiftOps = map[string]shiftOp{
	"slli": {cpu.F3Sll, 0x000},
	"srli": {cpu.F3Srl, 0x000},
	"srai": {cpu.F3Srl, 0x400},
}

var loadOps = map[string]uint32{
	"ld": cpu.F3Double,
}

var storeOps = map[string]uint32{
	"sd": cpu.F3Double,
}

// ignoredDirectives are accepted but produce no bytes.
var ignoredDirectives = map[string]bool{
	".globl":  true,
	".global": true,
	".text":   true,
}

var abiRegisters = map[string]uint32{
	"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4,
	"t0": 5, "t1": 6, "t2": 7,
	"s0": 8, "fp": 8, "s1": 9,
	"a0": 10, "a1": 11, "a2": 12, "a3": 13, "a4": 14, "a5": 15, "a6": 16, "a7": 17,
	"s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23, "s8": 24, "s9": 25,
	"s10": 26, "s11": 27,
	"t3": 28, "t4": 29, "t5": 30, "t6": 31,
}

type Assembler struct {
	labels map[string]uint64
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint64),
	}
}

// Assemble translates RV64 assembly text into a flat little-endian image
// loaded at address 0. The second result maps each instruction address to
// its 1-based source line.
func Assemble(code string) ([]byte, map[uint64]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint64]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// Label returns the address a label was bound to by the last Assemble.
func (a *Assembler) Label(name string) (uint64, bool) {
	addr, ok := a.labels[name]
	return addr, ok
}

// pass1 binds every label to its address. Only li has a variable length, and
// its length depends on nothing but its own immediate.
func (a *Assembler) pass1(lines []string) error {
	var address uint64

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[lbl] = address
		}

		if p.mnemonic == "" {
			continue
		}

		length, err := instructionLength(p)
		if err != nil {
			return err
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint64]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint64]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" || ignoredDirectives[p.mnemonic] {
			continue
		}

		sourceMap[uint64(len(program))] = lineNo

		if p.mnemonic == ".dword" {
			if len(p.operands) != 1 {
				return nil, nil, fmt.Errorf(".dword expects exactly one operand on line %d", lineNo)
			}
			val, err := a.parseImmediate(p.operands[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = binary.LittleEndian.AppendUint64(program, uint64(val))
			continue
		}

		words, err := a.encode(p)
		if err != nil {
			return nil, nil, err
		}
		for _, w := range words {
			program = binary.LittleEndian.AppendUint32(program, w)
		}
	}

	return program, sourceMap, nil
}

// encode translates one instruction or pseudo-instruction to machine words.
func (a *Assembler) encode(p parsedLine) ([]uint32, error) {
	mnemonic := p.mnemonic
	ops := p.operands
	lineNo := p.lineNo

	expect := func(n int) error {
		if len(ops) != n {
			return fmt.Errorf("%s expects %d operands on line %d", mnemonic, n, lineNo)
		}
		return nil
	}

	if op, ok := rTypeOps[mnemonic]; ok {
		if err := expect(3); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeR(cpu.OpReg, op.funct3, op.funct7, regs[0], regs[1], regs[2])}, nil
	}

	if op, ok := iTypeOps[mnemonic]; ok {
		if err := expect(3); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops[:2], lineNo)
		if err != nil {
			return nil, err
		}
		imm, err := parseImm12(ops[2], lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(op.opcode, op.funct3, regs[0], regs[1], imm)}, nil
	}

	if op, ok := shiftOps[mnemonic]; ok {
		if err := expect(3); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops[:2], lineNo)
		if err != nil {
			return nil, err
		}
		shamt, err := strconv.ParseUint(ops[2], 0, 6)
		if err != nil {
			return nil, fmt.Errorf("invalid shift amount '%s' on line %d", ops[2], lineNo)
		}
		return []uint32{cpu.EncodeI(cpu.OpImm, op.funct3, regs[0], regs[1], int64(op.high|uint32(shamt)))}, nil
	}

	if funct3, ok := loadOps[mnemonic]; ok {
		rd, imm, base, err := parseMemOperands(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(cpu.OpLoad, funct3, rd, base, imm)}, nil
	}

	if funct3, ok := storeOps[mnemonic]; ok {
		rs2, imm, base, err := parseMemOperands(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeS(cpu.OpStore, funct3, base, rs2, imm)}, nil
	}

	switch mnemonic {
	case "li":
		if err := expect(2); err != nil {
			return nil, err
		}
		rd, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return nil, err
		}
		if isIdentifier(ops[1]) {
			addr, err := a.parseImmediate(ops[1], lineNo)
			if err != nil {
				return nil, err
			}
			return loadAddress(rd, addr), nil
		}
		val, err := a.parseImmediate(ops[1], lineNo)
		if err != nil {
			return nil, err
		}
		return loadImmediate(rd, val), nil

	case "lui":
		if err := expect(2); err != nil {
			return nil, err
		}
		rd, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return nil, err
		}
		imm, err := strconv.ParseInt(ops[1], 0, 64)
		if err != nil || imm < 0 || imm > 0xFFFFF {
			return nil, fmt.Errorf("invalid upper immediate '%s' on line %d", ops[1], lineNo)
		}
		return []uint32{cpu.EncodeU(cpu.OpLUI, rd, imm)}, nil

	case "mv":
		if err := expect(2); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(cpu.OpImm, cpu.F3AddSub, regs[0], regs[1], 0)}, nil

	case "neg":
		if err := expect(2); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeR(cpu.OpReg, cpu.F3AddSub, cpu.F7Alt, regs[0], cpu.RegZero, regs[1])}, nil

	case "not":
		if err := expect(2); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(cpu.OpImm, cpu.F3Xor, regs[0], regs[1], -1)}, nil

	case "seqz":
		if err := expect(2); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(cpu.OpImm, cpu.F3Sltu, regs[0], regs[1], 1)}, nil

	case "snez":
		if err := expect(2); err != nil {
			return nil, err
		}
		regs, err := parseRegisters(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeR(cpu.OpReg, cpu.F3Sltu, cpu.F7Base, regs[0], cpu.RegZero, regs[1])}, nil

	case "jalr":
		// jalr rs1 | jalr rd, imm(rs1)
		if len(ops) == 1 {
			rs1, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, err
			}
			return []uint32{cpu.EncodeI(cpu.OpJALR, 0, cpu.RegRA, rs1, 0)}, nil
		}
		rd, imm, base, err := parseMemOperands(ops, lineNo)
		if err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(cpu.OpJALR, 0, rd, base, imm)}, nil

	case "ret":
		if err := expect(0); err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(cpu.OpJALR, 0, cpu.RegZero, cpu.RegRA, 0)}, nil

	case "nop":
		if err := expect(0); err != nil {
			return nil, err
		}
		return []uint32{cpu.EncodeI(cpu.OpImm, cpu.F3AddSub, 0, 0, 0)}, nil
	}

	return nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

// loadImmediate returns the shortest lui/addiw/slli/addi sequence that
// materialises val in rd.
func loadImmediate(rd uint32, val int64) []uint32 {
	lo12 := signExtend(val, 12)

	if val == int64(int32(val)) {
		hi20 := ((val + 0x800) >> 12) & 0xFFFFF
		var seq []uint32
		if hi20 != 0 {
			seq = append(seq, cpu.EncodeU(cpu.OpLUI, rd, hi20))
		}
		if lo12 != 0 || hi20 == 0 {
			if hi20 != 0 {
				seq = append(seq, cpu.EncodeI(cpu.OpImm32, cpu.F3AddSub, rd, rd, lo12))
			} else {
				seq = append(seq, cpu.EncodeI(cpu.OpImm, cpu.F3AddSub, rd, cpu.RegZero, lo12))
			}
		}
		return seq
	}

	// Build the upper 52 bits recursively, shift them into place, then add
	// the low 12 bits.
	hi52 := signExtend(int64((uint64(val)+0x800)>>12), 52)
	shift := 12 + bits.TrailingZeros64(uint64(hi52))
	hi52 = signExtend(hi52>>(shift-12), 64-shift)

	seq := loadImmediate(rd, hi52)
	seq = append(seq, cpu.EncodeI(cpu.OpImm, cpu.F3Sll, rd, rd, int64(shift)))
	if lo12 != 0 {
		seq = append(seq, cpu.EncodeI(cpu.OpImm, cpu.F3AddSub, rd, rd, lo12))
	}
	return seq
}

// loadAddress materialises a label address with a fixed two-instruction
// sequence so that pass 1 can size it before the label is known.
func loadAddress(rd uint32, addr int64) []uint32 {
	hi20 := ((addr + 0x800) >> 12) & 0xFFFFF
	return []uint32{
		cpu.EncodeU(cpu.OpLUI, rd, hi20),
		cpu.EncodeI(cpu.OpImm32, cpu.F3AddSub, rd, rd, signExtend(addr, 12)),
	}
}

func signExtend(v int64, width int) int64 {
	shift := 64 - width
	return v << shift >> shift
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(normalizeInstructionText(line))
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToLower(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	return p, nil
}

func stripComments(line string) string {
	hash := strings.IndexByte(line, '#')
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if hash >= 0 {
		cut = hash
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

// normalizeInstructionText turns "sd a0, 8(sp)" into "sd a0  8 sp ".
func normalizeInstructionText(line string) string {
	replacer := strings.NewReplacer(",", " ", "(", " ", ")", " ")
	return replacer.Replace(line)
}

func parseRegister(token string, lineNo int) (uint32, error) {
	name := strings.ToLower(token)
	if r, ok := abiRegisters[name]; ok {
		return r, nil
	}
	if strings.HasPrefix(name, "x") {
		if n, err := strconv.ParseUint(name[1:], 10, 8); err == nil && n < 32 {
			return uint32(n), nil
		}
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

func parseRegisters(tokens []string, lineNo int) ([]uint32, error) {
	regs := make([]uint32, len(tokens))
	for i, tok := range tokens {
		r, err := parseRegister(tok, lineNo)
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}
	return regs, nil
}

// parseMemOperands handles "reg, imm(base)" and "reg, (base)".
func parseMemOperands(ops []string, lineNo int) (reg uint32, imm int64, base uint32, err error) {
	switch len(ops) {
	case 2:
		ops = []string{ops[0], "0", ops[1]}
	case 3:
	default:
		return 0, 0, 0, fmt.Errorf("expected reg, offset(base) on line %d", lineNo)
	}
	if reg, err = parseRegister(ops[0], lineNo); err != nil {
		return 0, 0, 0, err
	}
	if imm, err = parseImm12(ops[1], lineNo); err != nil {
		return 0, 0, 0, err
	}
	if base, err = parseRegister(ops[2], lineNo); err != nil {
		return 0, 0, 0, err
	}
	return reg, imm, base, nil
}

func parseImm12(token string, lineNo int) (int64, error) {
	v, err := strconv.ParseInt(token, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
	}
	if v < -2048 || v > 2047 {
		return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
	}
	return v, nil
}

// parseNumber accepts signed values and unsigned 64-bit bit patterns.
func parseNumber(token string) (int64, bool) {
	if value, err := strconv.ParseInt(token, 0, 64); err == nil {
		return value, true
	}
	if value, err := strconv.ParseUint(token, 0, 64); err == nil {
		return int64(value), true
	}
	return 0, false
}

func (a *Assembler) parseImmediate(token string, lineNo int) (int64, error) {
	if value, ok := parseNumber(token); ok {
		return value, nil
	}

	if addr, ok := a.labels[token]; ok {
		return int64(addr), nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// instructionLength returns the byte length of a parsed line. Every real
// instruction is 4 bytes; li expands to between one and eight of them.
func instructionLength(p parsedLine) (uint64, error) {
	switch {
	case ignoredDirectives[p.mnemonic]:
		return 0, nil
	case p.mnemonic == ".dword":
		return 8, nil
	case p.mnemonic == "li":
		if len(p.operands) != 2 {
			return 0, fmt.Errorf("li expects 2 operands on line %d", p.lineNo)
		}
		if isIdentifier(p.operands[1]) {
			return 8, nil
		}
		val, ok := parseNumber(p.operands[1])
		if !ok {
			return 0, fmt.Errorf("invalid immediate '%s' on line %d", p.operands[1], p.lineNo)
		}
		return uint64(4 * len(loadImmediate(0, val))), nil
	case strings.HasPrefix(p.mnemonic, "."):
		return 0, fmt.Errorf("unknown directive on line %d: %s", p.lineNo, p.mnemonic)
	}
	if !isMnemonic(p.mnemonic) {
		return 0, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}
	return 4, nil
}

func isMnemonic(m string) bool {
	if _, ok := rTypeOps[m]; ok {
		return true
	}
	if _, ok := iTypeOps[m]; ok {
		return true
	}
	if _, ok := shiftOps[m]; ok {
		return true
	}
	if _, ok := loadOps[m]; ok {
		return true
	}
	if _, ok := storeOps[m]; ok {
		return true
	}
	switch m {
	case "lui", "mv", "neg", "not", "seqz", "snez", "jalr", "ret", "nop":
		return true
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' && r != '.' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return false
		}
	}

	return true
}
