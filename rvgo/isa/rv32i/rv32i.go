// Package rv32i implements the RV32I base integer instruction set as an isa.Extension.
package rv32i

import (
	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

const Name = "RV32I"

const (
	OpLUI   isa.Op = "lui"
	OpAUIPC isa.Op = "auipc"
	OpJAL   isa.Op = "jal"
	OpJALR  isa.Op = "jalr"

	OpBEQ  isa.Op = "beq"
	OpBNE  isa.Op = "bne"
	OpBLT  isa.Op = "blt"
	OpBGE  isa.Op = "bge"
	OpBLTU isa.Op = "bltu"
	OpBGEU isa.Op = "bgeu"

	OpLB  isa.Op = "lb"
	OpLH  isa.Op = "lh"
	OpLW  isa.Op = "lw"
	OpLBU isa.Op = "lbu"
	OpLHU isa.Op = "lhu"
	OpSB  isa.Op = "sb"
	OpSH  isa.Op = "sh"
	OpSW  isa.Op = "sw"

	OpADDI  isa.Op = "addi"
	OpSLTI  isa.Op = "slti"
	OpSLTIU isa.Op = "sltiu"
	OpXORI  isa.Op = "xori"
	OpORI   isa.Op = "ori"
	OpANDI  isa.Op = "andi"
	OpSLLI  isa.Op = "slli"
	OpSRLI  isa.Op = "srli"
	OpSRAI  isa.Op = "srai"

	OpADD  isa.Op = "add"
	OpSUB  isa.Op = "sub"
	OpSLL  isa.Op = "sll"
	OpSLT  isa.Op = "slt"
	OpSLTU isa.Op = "sltu"
	OpXOR  isa.Op = "xor"
	OpSRL  isa.Op = "srl"
	OpSRA  isa.Op = "sra"
	OpOR   isa.Op = "or"
	OpAND  isa.Op = "and"

	OpFENCE    isa.Op = "fence"
	OpFENCETSO isa.Op = "fence.tso"
	OpECALL    isa.Op = "ecall"
	OpEBREAK   isa.Op = "ebreak"
)

// indexed by funct3; empty entries are reserved encodings
var (
	branchOps = [8]isa.Op{0: OpBEQ, 1: OpBNE, 4: OpBLT, 5: OpBGE, 6: OpBLTU, 7: OpBGEU}
	loadOps   = [8]isa.Op{0: OpLB, 1: OpLH, 2: OpLW, 4: OpLBU, 5: OpLHU}
	storeOps  = [8]isa.Op{0: OpSB, 1: OpSH, 2: OpSW}
	opImmOps  = [8]isa.Op{0: OpADDI, 2: OpSLTI, 3: OpSLTIU, 4: OpXORI, 6: OpORI, 7: OpANDI}
	opOps     = [8]isa.Op{0: OpADD, 1: OpSLL, 2: OpSLT, 3: OpSLTU, 4: OpXOR, 5: OpSRL, 6: OpOR, 7: OpAND}
)

const (
	wordECALL  = 0x0000_0073
	wordEBREAK = 0x0010_0073
)

// Extension is the base integer instruction set. It is always first in an environment's extension set.
type Extension struct {
	// TrapEnvironmentCalls makes ecall and ebreak raise EnvironmentCall and Breakpoint
	// traps. Otherwise they retire with no effect.
	TrapEnvironmentCalls bool
}

var _ isa.Extension = (*Extension)(nil)

func New() *Extension {
	return &Extension{}
}

func (e *Extension) Name() string {
	return Name
}

func (e *Extension) Claims() []isa.Claim {
	opcode := func(op uint32) isa.Claim {
		return isa.Claim{Mask: riscv.MaskOpcode, Match: op}
	}
	funct3Zero := func(op uint32) isa.Claim {
		return isa.Claim{Mask: riscv.MaskOpcode | riscv.MaskFunct3, Match: op}
	}
	return []isa.Claim{
		opcode(riscv.OpcodeLUI),
		opcode(riscv.OpcodeAUIPC),
		opcode(riscv.OpcodeJAL),
		funct3Zero(riscv.OpcodeJALR),
		opcode(riscv.OpcodeBranch),
		opcode(riscv.OpcodeLoad),
		opcode(riscv.OpcodeStore),
		opcode(riscv.OpcodeOpImm),
		{Mask: riscv.MaskOpcode | riscv.MaskFunct7, Match: riscv.OpcodeOp},
		{Mask: riscv.MaskOpcode | riscv.MaskFunct7, Match: 0x20<<25 | riscv.OpcodeOp},
		// fence.i (funct3=1) and the Zicsr space (funct3!=0) stay free for other extensions
		funct3Zero(riscv.OpcodeMiscMem),
		funct3Zero(riscv.OpcodeSystem),
	}
}

func (e *Extension) Decode(word uint32) (isa.Instruction, bool) {
	var in isa.Instruction
	switch isa.Opcode(word) {
	case riscv.OpcodeLUI: // 011_0111
		in = isa.Parse(word, isa.FormatU)
		in.Op = OpLUI
	case riscv.OpcodeAUIPC: // 001_0111
		in = isa.Parse(word, isa.FormatU)
		in.Op = OpAUIPC
	case riscv.OpcodeJAL: // 110_1111
		in = isa.Parse(word, isa.FormatJ)
		in.Op = OpJAL
	case riscv.OpcodeJALR: // 110_0111
		in = isa.Parse(word, isa.FormatI)
		if in.Funct3 != 0 {
			return isa.Instruction{}, false
		}
		in.Op, in.Syntax = OpJALR, isa.SyntaxMemory
	case riscv.OpcodeBranch: // 110_0011
		in = isa.Parse(word, isa.FormatB)
		in.Op = branchOps[in.Funct3]
	case riscv.OpcodeLoad: // 000_0011
		in = isa.Parse(word, isa.FormatI)
		in.Op, in.Syntax = loadOps[in.Funct3], isa.SyntaxMemory
	case riscv.OpcodeStore: // 010_0011
		in = isa.Parse(word, isa.FormatS)
		in.Op = storeOps[in.Funct3]
	case riscv.OpcodeOpImm: // 001_0011
		in = isa.Parse(word, isa.FormatI)
		switch in.Funct3 {
		case 1: // 001 = SLLI
			in.Funct7 = uint8(word >> 25)
			if in.Funct7 == 0 {
				in.Op, in.Imm = OpSLLI, in.Imm&0x1F
			}
		case 5: // 101 = SR~, imm[11:5] selects the shift type
			in.Funct7 = uint8(word >> 25)
			switch in.Funct7 {
			case 0x00:
				in.Op, in.Imm = OpSRLI, in.Imm&0x1F
			case 0x20:
				in.Op, in.Imm = OpSRAI, in.Imm&0x1F
			}
		default:
			in.Op = opImmOps[in.Funct3]
		}
	case riscv.OpcodeOp: // 011_0011
		in = isa.Parse(word, isa.FormatR)
		switch in.Funct7 {
		case 0x00:
			in.Op = opOps[in.Funct3]
		case 0x20:
			switch in.Funct3 {
			case 0: // 000 = SUB
				in.Op = OpSUB
			case 5: // 101 = SRA
				in.Op = OpSRA
			}
		}
	case riscv.OpcodeMiscMem: // 000_1111
		in = isa.Parse(word, isa.FormatI)
		if in.Funct3 != 0 {
			return isa.Instruction{}, false
		}
		// fm lives in bits 31:28; rd and rs1 are reserved and ignored
		switch word >> 28 {
		case 0b0000:
			in.Op = OpFENCE
		case 0b1000:
			in.Op = OpFENCETSO
		}
		in.Syntax = isa.SyntaxBare
	case riscv.OpcodeSystem: // 111_0011
		in = isa.Parse(word, isa.FormatI)
		switch word {
		case wordECALL:
			in.Op = OpECALL
		case wordEBREAK:
			in.Op = OpEBREAK
		}
		in.Syntax = isa.SyntaxBare
	}
	if in.Op == "" {
		return isa.Instruction{}, false
	}
	return in, true
}
