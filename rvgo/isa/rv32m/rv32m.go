// Package rv32m adds the M standard extension (integer multiply and divide) on top of RV32I.
package rv32m

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

const Name = "RV32M"

const funct7MulDiv = 0x01

const (
	OpMUL    isa.Op = "mul"
	OpMULH   isa.Op = "mulh"
	OpMULHSU isa.Op = "mulhsu"
	OpMULHU  isa.Op = "mulhu"
	OpDIV    isa.Op = "div"
	OpDIVU   isa.Op = "divu"
	OpREM    isa.Op = "rem"
	OpREMU   isa.Op = "remu"
)

var ops = [8]isa.Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}

type Extension struct{}

var _ isa.Extension = Extension{}

func (Extension) Name() string {
	return Name
}

func (Extension) Claims() []isa.Claim {
	return []isa.Claim{{Mask: riscv.MaskOpcode | riscv.MaskFunct7, Match: funct7MulDiv<<25 | riscv.OpcodeOp}}
}

func (Extension) Decode(word uint32) (isa.Instruction, bool) {
	if isa.Opcode(word) != riscv.OpcodeOp {
		return isa.Instruction{}, false
	}
	in := isa.Parse(word, isa.FormatR)
	if in.Funct7 != funct7MulDiv {
		return isa.Instruction{}, false
	}
	in.Op = ops[in.Funct3]
	return in, true
}

// signed256 sign-extends v across all 256 bits.
func signed256(v uint32) *uint256.Int {
	x := uint256.NewInt(uint64(v))
	if int32(v) < 0 {
		x.Sub(x, new(uint256.Int).Lsh(uint256.NewInt(1), 32))
	}
	return x
}

func high(a, b *uint256.Int) uint32 {
	return uint32(new(uint256.Int).Rsh(new(uint256.Int).Mul(a, b), 32).Uint64())
}

// Compute evaluates op on a and b. Division by zero and signed overflow follow the
// RISC-V results instead of trapping.
func Compute(op isa.Op, a, b uint32) (uint32, error) {
	switch op {
	case OpMUL: // 000 = MUL: lower 32 bits
		return a * b, nil
	case OpMULH: // 001 = MULH: upper bits of signed x signed
		return high(signed256(a), signed256(b)), nil
	case OpMULHSU: // 010 = MULHSU: upper bits of signed x unsigned
		return high(signed256(a), uint256.NewInt(uint64(b))), nil
	case OpMULHU: // 011 = MULHU: upper bits of unsigned x unsigned
		return high(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b))), nil
	case OpDIV: // 100 = DIV
		switch {
		case b == 0:
			return math.MaxUint32, nil
		case int32(a) == math.MinInt32 && int32(b) == -1:
			return a, nil
		}
		return uint32(int32(a) / int32(b)), nil
	case OpDIVU: // 101 = DIVU
		if b == 0 {
			return math.MaxUint32, nil
		}
		return a / b, nil
	case OpREM: // 110 = REM
		switch {
		case b == 0:
			return a, nil
		case int32(a) == math.MinInt32 && int32(b) == -1:
			return 0, nil
		}
		return uint32(int32(a) % int32(b)), nil
	case OpREMU: // 111 = REMU
		if b == 0 {
			return a, nil
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("%w: %q is not an %s operation", isa.ErrIllegalInstruction, op, Name)
}

func (Extension) Execute(in isa.Instruction, m isa.Machine) error {
	v, err := Compute(in.Op, m.Reg(in.Rs1), m.Reg(in.Rs2))
	if err != nil {
		return isa.NewTrap(isa.IllegalInstruction, err)
	}
	m.SetReg(in.Rd, v)
	return nil
}

// Builders for test programs.

func op(funct3 uint8) func(rd, rs1, rs2 uint8) uint32 {
	return func(rd, rs1, rs2 uint8) uint32 {
		return isa.EncodeR(riscv.OpcodeOp, rd, funct3, rs1, rs2, funct7MulDiv)
	}
}

var (
	Mul    = op(0)
	Mulh   = op(1)
	Mulhsu = op(2)
	Mulhu  = op(3)
	Div    = op(4)
	Divu   = op(5)
	Rem    = op(6)
	Remu   = op(7)
)
