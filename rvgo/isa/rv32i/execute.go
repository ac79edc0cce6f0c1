package rv32i

import (
	"fmt"

	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/memory"
)

func signExtend(v uint32, w memory.Width) uint32 {
	shift := 32 - 8*uint32(w)
	return uint32(int32(v<<shift) >> shift)
}

func branchTaken(op isa.Op, a, b uint32) bool {
	switch op {
	case OpBEQ:
		return a == b
	case OpBNE:
		return a != b
	case OpBLT:
		return int32(a) < int32(b)
	case OpBGE:
		return int32(a) >= int32(b)
	case OpBLTU:
		return a < b
	default: // OpBGEU
		return a >= b
	}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// alu evaluates register-register and register-immediate arithmetic. Results wrap
// modulo 2^32 and shift amounts use the low 5 bits.
func alu(op isa.Op, a, b uint32) (uint32, bool) {
	switch op {
	case OpADD, OpADDI:
		return a + b, true
	case OpSUB:
		return a - b, true
	case OpSLL, OpSLLI:
		return a << (b & 0x1F), true
	case OpSLT, OpSLTI:
		return b2u(int32(a) < int32(b)), true
	case OpSLTU, OpSLTIU:
		return b2u(a < b), true
	case OpXOR, OpXORI:
		return a ^ b, true
	case OpSRL, OpSRLI:
		return a >> (b & 0x1F), true
	case OpSRA, OpSRAI:
		return uint32(int32(a) >> (b & 0x1F)), true
	case OpOR, OpORI:
		return a | b, true
	case OpAND, OpANDI:
		return a & b, true
	}
	return 0, false
}

func (e *Extension) Execute(in isa.Instruction, m isa.Machine) error {
	pc := m.PC()
	imm := uint32(in.Imm)
	switch in.Op {
	case OpLUI:
		m.SetReg(in.Rd, imm)
	case OpAUIPC:
		m.SetReg(in.Rd, pc+imm)
	case OpJAL:
		m.SetReg(in.Rd, pc+4)
		m.Jump(pc + imm)
	case OpJALR:
		// target is computed before the link write, rd may equal rs1
		target := (m.Reg(in.Rs1) + imm) &^ 1
		m.SetReg(in.Rd, pc+4)
		m.Jump(target)
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		if branchTaken(in.Op, m.Reg(in.Rs1), m.Reg(in.Rs2)) {
			m.Jump(pc + imm)
		}
	case OpLB, OpLH, OpLW, OpLBU, OpLHU:
		w := memory.Width(1 << (in.Funct3 & 3))
		v, err := m.Load(m.Reg(in.Rs1)+imm, w)
		if err != nil {
			return err
		}
		if in.Funct3 < 4 { // signed loads
			v = signExtend(v, w)
		}
		m.SetReg(in.Rd, v)
	case OpSB, OpSH, OpSW:
		w := memory.Width(1 << in.Funct3)
		return m.Store(m.Reg(in.Rs1)+imm, w, m.Reg(in.Rs2))
	case OpFENCE, OpFENCETSO:
		// single hart, no caches: ordering is already total
	case OpECALL:
		if e.TrapEnvironmentCalls {
			return isa.NewTrap(isa.EnvironmentCall, nil)
		}
	case OpEBREAK:
		if e.TrapEnvironmentCalls {
			return isa.NewTrap(isa.Breakpoint, nil)
		}
	default:
		b := imm
		if in.Format == isa.FormatR {
			b = m.Reg(in.Rs2)
		}
		v, ok := alu(in.Op, m.Reg(in.Rs1), b)
		if !ok {
			return isa.NewTrap(isa.IllegalInstruction, fmt.Errorf("%w: %q is not an %s operation", isa.ErrIllegalInstruction, in.Op, Name))
		}
		m.SetReg(in.Rd, v)
	}
	return nil
}
