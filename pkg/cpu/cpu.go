package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Major opcodes (bits 6:0).
const (
	OpLoad  uint32 = 0x03
	OpImm   uint32 = 0x13
	OpImm32 uint32 = 0x1B
	OpStore uint32 = 0x23
	OpReg   uint32 = 0x33
	OpLUI   uint32 = 0x37
	OpJALR  uint32 = 0x67
)

// funct3 values.
const (
	F3AddSub uint32 = 0x0
	F3Sll    uint32 = 0x1
	F3Slt    uint32 = 0x2
	F3Sltu   uint32 = 0x3
	F3Xor    uint32 = 0x4
	F3Srl    uint32 = 0x5
	F3Or     uint32 = 0x6
	F3And    uint32 = 0x7

	F3Mul uint32 = 0x0
	F3Div uint32 = 0x4
	F3Rem uint32 = 0x6

	F3Double uint32 = 0x3 // ld / sd
)

// funct7 values.
const (
	F7Base   uint32 = 0x00
	F7Alt    uint32 = 0x20 // sub, sra
	F7MulDiv uint32 = 0x01
)

// ABI register numbers used by the compiler's output.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegFP   = 8
	RegA0   = 10
	RegA1   = 11
)

// DefaultMemorySize is enough for any program the compiler emits plus its
// stack.
const DefaultMemorySize = 1 << 20

var (
	ErrIllegalInstruction = errors.New("illegal instruction")
	ErrMemoryFault        = errors.New("memory access fault")
	ErrStepLimit          = errors.New("step limit exceeded")
)

// Hart is a single RV64IM hardware thread with a flat little-endian memory
// starting at address zero.
type Hart struct {
	X  [32]uint64
	PC uint64

	Memory []byte

	Halted bool
	Steps  int

	// exitPC is the return address handed to the entry function. Jumping
	// there halts the hart.
	exitPC uint64
}

// NewHart creates a hart with memSize bytes of zeroed memory.
func NewHart(memSize int) *Hart {
	return &Hart{Memory: make([]byte, memSize)}
}

// Load copies image to address 0 and prepares a call to entry: sp at the top
// of memory and ra pointing at the halt sentinel.
func (h *Hart) Load(image []byte, entry uint64) error {
	if len(image) > len(h.Memory) {
		return fmt.Errorf("program too large for memory: %d bytes > %d bytes", len(image), len(h.Memory))
	}
	copy(h.Memory, image)
	h.X = [32]uint64{}
	h.PC = entry
	h.exitPC = uint64(len(h.Memory))
	h.X[RegSP] = uint64(len(h.Memory))
	h.X[RegRA] = h.exitPC
	h.Halted = false
	h.Steps = 0
	return nil
}

// Reg returns register x[i] as a signed value.
func (h *Hart) Reg(i int) int64 {
	return int64(h.X[i])
}

func (h *Hart) setReg(rd uint32, val uint64) {
	if rd != RegZero {
		h.X[rd] = val
	}
}

func (h *Hart) checkAccess(addr uint64, size uint64) error {
	if addr%size != 0 || addr+size > uint64(len(h.Memory)) || addr+size < addr {
		return fmt.Errorf("%w: %d-byte access at 0x%X", ErrMemoryFault, size, addr)
	}
	return nil
}

func (h *Hart) Read64(addr uint64) (uint64, error) {
	if err := h.checkAccess(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(h.Memory[addr:]), nil
}

func (h *Hart) Write64(addr uint64, val uint64) error {
	if err := h.checkAccess(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(h.Memory[addr:], val)
	return nil
}

func (h *Hart) fetch() (uint32, error) {
	if err := h.checkAccess(h.PC, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(h.Memory[h.PC:]), nil
}

// signExtend interprets the low bits of v as a two's complement number.
func signExtend(v uint64, bits uint) uint64 {
	shift := 64 - bits
	return uint64(int64(v<<shift) >> shift)
}

func immI(instr uint32) uint64 {
	return signExtend(uint64(instr>>20), 12)
}

func immS(instr uint32) uint64 {
	v := (instr>>25)<<5 | (instr>>7)&0x1F
	return signExtend(uint64(v), 12)
}

func div(a, b int64) int64 {
	switch {
	case b == 0:
		return -1
	case a == math.MinInt64 && b == -1:
		return a
	}
	return a / b
}

func rem(a, b int64) int64 {
	switch {
	case b == 0:
		return a
	case a == math.MinInt64 && b == -1:
		return 0
	}
	return a % b
}

func boolToWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Step fetches, decodes and executes one instruction.
func (h *Hart) Step() error {
	if h.Halted {
		return nil
	}
	if h.PC == h.exitPC {
		h.Halted = true
		return nil
	}

	instr, err := h.fetch()
	if err != nil {
		return err
	}
	h.Steps++

	opcode := instr & 0x7F
	rd := (instr >> 7) & 0x1F
	funct3 := (instr >> 12) & 0x07
	rs1 := (instr >> 15) & 0x1F
	rs2 := (instr >> 20) & 0x1F
	funct7 := instr >> 25

	next := h.PC + 4
	a := h.X[rs1]
	b := h.X[rs2]

	illegal := func() error {
		return fmt.Errorf("%w 0x%08X at 0x%X", ErrIllegalInstruction, instr, h.PC)
	}

	switch opcode {
	case OpLUI:
		h.setReg(rd, signExtend(uint64(instr&0xFFFFF000), 32))

	case OpImm:
		imm := immI(instr)
		shamt := uint(instr>>20) & 0x3F
		switch funct3 {
		case F3AddSub:
			h.setReg(rd, a+imm)
		case F3Slt:
			h.setReg(rd, boolToWord(int64(a) < int64(imm)))
		case F3Sltu:
			h.setReg(rd, boolToWord(a < imm))
		case F3Xor:
			h.setReg(rd, a^imm)
		case F3Or:
			h.setReg(rd, a|imm)
		case F3And:
			h.setReg(rd, a&imm)
		case F3Sll:
			h.setReg(rd, a<<shamt)
		case F3Srl:
			if instr>>26 == F7Alt>>1 {
				h.setReg(rd, uint64(int64(a)>>shamt))
			} else {
				h.setReg(rd, a>>shamt)
			}
		}

	case OpImm32:
		if funct3 != F3AddSub {
			return illegal()
		}
		h.setReg(rd, signExtend(uint64(uint32(a+immI(instr))), 32))

	case OpReg:
		switch funct7 {
		case F7Base:
			switch funct3 {
			case F3AddSub:
				h.setReg(rd, a+b)
			case F3Sll:
				h.setReg(rd, a<<(b&0x3F))
			case F3Slt:
				h.setReg(rd, boolToWord(int64(a) < int64(b)))
			case F3Sltu:
				h.setReg(rd, boolToWord(a < b))
			case F3Xor:
				h.setReg(rd, a^b)
			case F3Srl:
				h.setReg(rd, a>>(b&0x3F))
			case F3Or:
				h.setReg(rd, a|b)
			case F3And:
				h.setReg(rd, a&b)
			}
		case F7Alt:
			switch funct3 {
			case F3AddSub:
				h.setReg(rd, a-b)
			case F3Srl:
				h.setReg(rd, uint64(int64(a)>>(b&0x3F)))
			default:
				return illegal()
			}
		case F7MulDiv:
			switch funct3 {
			case F3Mul:
				h.setReg(rd, a*b)
			case F3Div:
				h.setReg(rd, uint64(div(int64(a), int64(b))))
			case F3Rem:
				h.setReg(rd, uint64(rem(int64(a), int64(b))))
			default:
				return illegal()
			}
		default:
			return illegal()
		}

	case OpLoad:
		if funct3 != F3Double {
			return illegal()
		}
		val, err := h.Read64(a + immI(instr))
		if err != nil {
			return err
		}
		h.setReg(rd, val)

	case OpStore:
		if funct3 != F3Double {
			return illegal()
		}
		if err := h.Write64(a+immS(instr), b); err != nil {
			return err
		}

	case OpJALR:
		if funct3 != 0 {
			return illegal()
		}
		target := (a + immI(instr)) &^ 1
		h.setReg(rd, next)
		next = target

	default:
		return illegal()
	}

	h.PC = next
	return nil
}

// Run steps until the entry function returns, an instruction faults, or
// maxSteps instructions have executed.
func (h *Hart) Run(maxSteps int) error {
	for !h.Halted {
		if h.Steps >= maxSteps {
			return fmt.Errorf("%w (%d)", ErrStepLimit, maxSteps)
		}
		if err := h.Step(); err != nil {
			return err
		}
	}
	return nil
}

// EncodeR assembles an R-type instruction.
func EncodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return funct7<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 | funct3<<12 | (rd&0x1F)<<7 | opcode
}

// EncodeI assembles an I-type instruction. imm must fit in 12 signed bits.
func EncodeI(opcode, funct3, rd, rs1 uint32, imm int64) uint32 {
	return (uint32(imm)&0xFFF)<<20 | (rs1&0x1F)<<15 | funct3<<12 | (rd&0x1F)<<7 | opcode
}

// EncodeS assembles an S-type instruction. imm must fit in 12 signed bits.
func EncodeS(opcode, funct3, rs1, rs2 uint32, imm int64) uint32 {
	u := uint32(imm) & 0xFFF
	return (u>>5)<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

// EncodeU assembles a U-type instruction from the 20-bit upper immediate.
func EncodeU(opcode, rd uint32, imm20 int64) uint32 {
	return (uint32(imm20)&0xFFFFF)<<12 | (rd&0x1F)<<7 | opcode
}
