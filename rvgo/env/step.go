package env

import (
	"context"
	"errors"

	"github.com/z2l-emu/z2l/rvgo/hart"
	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/memory"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

// Retirement describes a successfully executed instruction.
type Retirement struct {
	PC          uint32
	NextPC      uint32
	Instruction isa.Instruction
	Extension   string
	// Cycle is the clock value after retirement.
	Cycle uint64
}

type regWrite struct {
	idx uint8
	v   uint32
}

type pendingStore struct {
	addr uint32
	w    memory.Width
	v    uint32
}

// staged buffers the effects of one instruction so a fault discards all of them.
type staged struct {
	regs *hart.Registers
	bus  *memory.Bus

	pc, next uint32
	writes   []regWrite
	stores   []pendingStore
}

var _ isa.Machine = (*staged)(nil)

func (s *staged) Reg(i uint8) uint32 {
	for j := len(s.writes) - 1; j >= 0; j-- {
		if s.writes[j].idx == i {
			return s.writes[j].v
		}
	}
	return s.regs.Read(i)
}

func (s *staged) SetReg(i uint8, v uint32) {
	if i == riscv.RegZero {
		return
	}
	s.writes = append(s.writes, regWrite{idx: i, v: v})
}

func (s *staged) PC() uint32 {
	return s.pc
}

func (s *staged) Jump(target uint32) {
	s.next = target
}

func (s *staged) Load(addr uint32, w memory.Width) (uint32, error) {
	v, err := s.bus.Read(addr, w)
	if err != nil {
		return 0, err
	}
	// pending stores of this instruction are visible to its own loads
	for _, st := range s.stores {
		for i := uint32(0); i < uint32(w); i++ {
			a := addr + i
			if a-st.addr < uint32(st.w) {
				b := (st.v >> (8 * (a - st.addr))) & 0xFF
				v = v&^(0xFF<<(8*i)) | b<<(8*i)
			}
		}
	}
	return v, nil
}

func (s *staged) Store(addr uint32, w memory.Width, v uint32) error {
	if err := s.bus.CheckWrite(addr, w); err != nil {
		return err
	}
	s.stores = append(s.stores, pendingStore{addr: addr, w: w, v: v})
	return nil
}

func (s *staged) commit() error {
	for _, st := range s.stores {
		if err := s.bus.Write(st.addr, st.w, st.v); err != nil {
			return err
		}
	}
	for _, w := range s.writes {
		s.regs.Write(w.idx, w.v)
	}
	s.regs.SetPC(s.next)
	return nil
}

// classify turns an execute-time failure into a trap.
func classify(err error) *isa.Trap {
	var trap *isa.Trap
	if errors.As(err, &trap) {
		cp := *trap
		return &cp
	}
	var ae *memory.AccessError
	if errors.As(err, &ae) {
		return isa.NewTrap(isa.MemoryFault, err)
	}
	return isa.NewTrap(isa.IllegalInstruction, err)
}

func (e *Environment) raise(trap *isa.Trap, pc, word uint32) error {
	trap.PC, trap.Word = pc, word
	e.trap = trap
	e.log.Debug("trap", "kind", trap.Kind, "pc", riscv.HexU32(pc), "insn", riscv.HexU32(word), "cycle", e.clock.Cycles(), "err", trap.Err)
	return trap
}

// Step fetches, decodes and executes one instruction. On success the clock ticks
// and the returned error is nil. On failure the error is a *isa.Trap, no state
// changed, and the trap stays latched until Reset.
func (e *Environment) Step() (Retirement, error) {
	if e.trap != nil {
		return Retirement{}, e.trap
	}
	pc := e.regs.PC()

	word, err := e.bus.FetchInstruction(pc)
	if err != nil {
		kind := isa.InstructionAccessFault
		if errors.Is(err, memory.ErrMisalignedFetch) {
			kind = isa.MisalignedFetch
		}
		return Retirement{PC: pc}, e.raise(isa.NewTrap(kind, err), pc, 0)
	}

	ext, in, err := e.exts.Decode(word)
	if err != nil {
		return Retirement{PC: pc}, e.raise(classify(err), pc, word)
	}

	m := &staged{regs: e.regs, bus: e.bus, pc: pc, next: pc + riscv.InstrSize}
	if err := ext.Execute(in, m); err != nil {
		return Retirement{PC: pc}, e.raise(classify(err), pc, word)
	}
	if err := m.commit(); err != nil {
		return Retirement{PC: pc}, e.raise(classify(err), pc, word)
	}
	e.clock.Tick()

	e.log.Trace("retired", "pc", riscv.HexU32(pc), "insn", in, "cycle", e.clock.Cycles())
	return Retirement{
		PC:          pc,
		NextPC:      m.next,
		Instruction: in,
		Extension:   ext.Name(),
		Cycle:       e.clock.Cycles(),
	}, nil
}

// Run steps until a trap, until maxSteps instructions retired (0 means no limit),
// or until ctx is done. It returns the number of retired instructions and the
// trap or context error that stopped it, nil when the budget ran out.
func (e *Environment) Run(ctx context.Context, maxSteps uint64) (uint64, error) {
	var n uint64
	for maxSteps == 0 || n < maxSteps {
		if n%100 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		if _, err := e.Step(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
