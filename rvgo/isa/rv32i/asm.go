package rv32i

import (
	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

// Instruction builders, for assembling test programs and small ROMs in Go.

func Lui(rd uint8, imm int32) uint32   { return isa.EncodeU(riscv.OpcodeLUI, rd, imm) }
func Auipc(rd uint8, imm int32) uint32 { return isa.EncodeU(riscv.OpcodeAUIPC, rd, imm) }
func Jal(rd uint8, off int32) uint32   { return isa.EncodeJ(riscv.OpcodeJAL, rd, off) }

func Jalr(rd, rs1 uint8, off int32) uint32 {
	return isa.EncodeI(riscv.OpcodeJALR, rd, 0, rs1, off)
}

func branch(funct3 uint8) func(rs1, rs2 uint8, off int32) uint32 {
	return func(rs1, rs2 uint8, off int32) uint32 {
		return isa.EncodeB(riscv.OpcodeBranch, funct3, rs1, rs2, off)
	}
}

var (
	Beq  = branch(0)
	Bne  = branch(1)
	Blt  = branch(4)
	Bge  = branch(5)
	Bltu = branch(6)
	Bgeu = branch(7)
)

func load(funct3 uint8) func(rd, rs1 uint8, off int32) uint32 {
	return func(rd, rs1 uint8, off int32) uint32 {
		return isa.EncodeI(riscv.OpcodeLoad, rd, funct3, rs1, off)
	}
}

var (
	Lb  = load(0)
	Lh  = load(1)
	Lw  = load(2)
	Lbu = load(4)
	Lhu = load(5)
)

func store(funct3 uint8) func(rs2, rs1 uint8, off int32) uint32 {
	return func(rs2, rs1 uint8, off int32) uint32 {
		return isa.EncodeS(riscv.OpcodeStore, funct3, rs1, rs2, off)
	}
}

// Stores take operands in assembly order: sw rs2, off(rs1).
var (
	Sb = store(0)
	Sh = store(1)
	Sw = store(2)
)

func opImm(funct3 uint8) func(rd, rs1 uint8, imm int32) uint32 {
	return func(rd, rs1 uint8, imm int32) uint32 {
		return isa.EncodeI(riscv.OpcodeOpImm, rd, funct3, rs1, imm)
	}
}

var (
	Addi  = opImm(0)
	Slti  = opImm(2)
	Sltiu = opImm(3)
	Xori  = opImm(4)
	Ori   = opImm(6)
	Andi  = opImm(7)
)

func Slli(rd, rs1, shamt uint8) uint32 {
	return isa.EncodeI(riscv.OpcodeOpImm, rd, 1, rs1, int32(shamt&0x1F))
}

func Srli(rd, rs1, shamt uint8) uint32 {
	return isa.EncodeI(riscv.OpcodeOpImm, rd, 5, rs1, int32(shamt&0x1F))
}

func Srai(rd, rs1, shamt uint8) uint32 {
	return isa.EncodeI(riscv.OpcodeOpImm, rd, 5, rs1, 0x400|int32(shamt&0x1F))
}

func op(funct3, funct7 uint8) func(rd, rs1, rs2 uint8) uint32 {
	return func(rd, rs1, rs2 uint8) uint32 {
		return isa.EncodeR(riscv.OpcodeOp, rd, funct3, rs1, rs2, funct7)
	}
}

var (
	Add  = op(0, 0)
	Sub  = op(0, 0x20)
	Sll  = op(1, 0)
	Slt  = op(2, 0)
	Sltu = op(3, 0)
	Xor  = op(4, 0)
	Srl  = op(5, 0)
	Sra  = op(5, 0x20)
	Or   = op(6, 0)
	And  = op(7, 0)
)

// Fence orders all prior memory accesses before all later ones (pred=succ=iorw).
func Fence() uint32 { return 0x0FF0_000F }

func Ecall() uint32  { return wordECALL }
func Ebreak() uint32 { return wordEBREAK }
func Nop() uint32    { return Addi(riscv.RegZero, riscv.RegZero, 0) }

// Li loads an arbitrary 32-bit constant with lui+addi.
func Li(rd uint8, v int32) []uint32 {
	lo := v << 20 >> 20
	hi := v - lo
	if hi == 0 {
		return []uint32{Addi(rd, riscv.RegZero, lo)}
	}
	return []uint32{Lui(rd, hi), Addi(rd, rd, lo)}
}
