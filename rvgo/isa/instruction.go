package isa

import (
	"fmt"

	"github.com/z2l-emu/z2l/rvgo/riscv"
)

// Format is the encoding layout of an instruction word.
type Format uint8

const (
	FormatR Format = iota
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

func (f Format) String() string {
	if f <= FormatJ {
		return string("RISBUJ"[f]) + "-type"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// Op is the mnemonic of a concrete operation, e.g. "add" or "beq".
type Op string

// Syntax selects how the operands of an instruction are printed.
type Syntax uint8

const (
	SyntaxDefault Syntax = iota
	SyntaxMemory         // offset(base) addressing: loads, stores, jalr
	SyntaxBare           // mnemonic only: fence, ecall, ebreak
)

// Instruction is a decoded instruction word.
type Instruction struct {
	Raw    uint32
	Op     Op
	Format Format
	Syntax Syntax

	Rd, Rs1, Rs2   uint8
	Funct3, Funct7 uint8
	// Imm is sign-extended. For U-type it holds the value as placed in the upper 20 bits.
	Imm int32
}

func reg(i uint8) string {
	return riscv.ABINames[i&0x1F]
}

// String renders the instruction as assembly. Branch and jump offsets are relative to the instruction.
func (in Instruction) String() string {
	if in.Syntax == SyntaxBare {
		return string(in.Op)
	}
	switch in.Format {
	case FormatR:
		return fmt.Sprintf("%s %s, %s, %s", in.Op, reg(in.Rd), reg(in.Rs1), reg(in.Rs2))
	case FormatI:
		if in.Syntax == SyntaxMemory {
			return fmt.Sprintf("%s %s, %d(%s)", in.Op, reg(in.Rd), in.Imm, reg(in.Rs1))
		}
		return fmt.Sprintf("%s %s, %s, %d", in.Op, reg(in.Rd), reg(in.Rs1), in.Imm)
	case FormatS:
		return fmt.Sprintf("%s %s, %d(%s)", in.Op, reg(in.Rs2), in.Imm, reg(in.Rs1))
	case FormatB:
		return fmt.Sprintf("%s %s, %s, %d", in.Op, reg(in.Rs1), reg(in.Rs2), in.Imm)
	case FormatU:
		return fmt.Sprintf("%s %s, 0x%x", in.Op, reg(in.Rd), uint32(in.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s %s, %d", in.Op, reg(in.Rd), in.Imm)
	default:
		return fmt.Sprintf("%s %08x", in.Op, in.Raw)
	}
}
