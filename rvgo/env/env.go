// Package env is the execution environment: one hart, one memory bus, one clock
// and an ordered extension set, driven one instruction at a time.
package env

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/z2l-emu/z2l/rvgo/clock"
	"github.com/z2l-emu/z2l/rvgo/hart"
	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/isa/rv32i"
	"github.com/z2l-emu/z2l/rvgo/memory"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

const DefaultRAMSize = riscv.DefaultRAMSize

type Config struct {
	// ROM is loaded verbatim at the ROM base and sizes the ROM region. It may be empty.
	ROM []byte
	// RAMSize defaults to DefaultRAMSize when zero.
	RAMSize uint32
	// Extensions are consulted after RV32I, in order.
	Extensions []isa.Extension
	// TrapEnvironmentCalls makes ecall/ebreak stop execution with a trap.
	TrapEnvironmentCalls bool
	Logger               log.Logger
}

type Environment struct {
	regs  *hart.Registers
	bus   *memory.Bus
	clock clock.Counter
	exts  *isa.ExtensionSet

	// trap is latched until Reset
	trap *isa.Trap

	log log.Logger
}

func New(cfg Config) (*Environment, error) {
	ramSize := cfg.RAMSize
	if ramSize == 0 {
		ramSize = DefaultRAMSize
	}
	if uint64(riscv.RAMBase)+uint64(ramSize) > 1<<32 {
		return nil, fmt.Errorf("RAM of %d bytes at %08x exceeds the address space: %w", ramSize, riscv.RAMBase, memory.ErrOutOfBounds)
	}
	if uint64(riscv.ROMBase)+uint64(len(cfg.ROM)) > uint64(riscv.RAMBase) {
		return nil, fmt.Errorf("ROM image of %d bytes runs into RAM at %08x: %w", len(cfg.ROM), riscv.RAMBase, memory.ErrOverlap)
	}
	bus, err := memory.NewBus(
		memory.NewRegionFrom("rom", riscv.ROMBase, cfg.ROM, memory.PermRX),
		memory.NewRegion("ram", riscv.RAMBase, ramSize, memory.PermRWX),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up memory: %w", err)
	}

	base := &rv32i.Extension{TrapEnvironmentCalls: cfg.TrapEnvironmentCalls}
	exts, err := isa.NewExtensionSet(base, cfg.Extensions...)
	if err != nil {
		return nil, err
	}

	l := cfg.Logger
	if l == nil {
		l = log.Root()
	}
	return &Environment{
		regs: hart.NewRegisters(riscv.ResetVector),
		bus:  bus,
		exts: exts,
		log:  l,
	}, nil
}

// Reset zeroes registers, RAM and the clock, moves the PC to the reset vector
// and clears a latched trap. ROM is left untouched.
func (e *Environment) Reset() {
	e.regs.Reset(riscv.ResetVector)
	e.bus.ZeroWritable()
	e.clock.Reset()
	e.trap = nil
}

func (e *Environment) PC() uint32 {
	return e.regs.PC()
}

func (e *Environment) Cycle() uint64 {
	return e.clock.Cycles()
}

// Trap returns the latched trap, if any.
func (e *Environment) Trap() *isa.Trap {
	return e.trap
}

// ReadMemory copies n bytes starting at addr without side effects. The range must
// lie in one region.
func (e *Environment) ReadMemory(addr, n uint32) ([]byte, error) {
	return e.bus.Peek(addr, n)
}

// Disassemble decodes the word at addr without fetching it.
func (e *Environment) Disassemble(addr uint32) (uint32, string, error) {
	raw, err := e.bus.Peek(addr, 4)
	if err != nil {
		return 0, "", err
	}
	word := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	return word, e.exts.Disassemble(word), nil
}

func (e *Environment) Extensions() []string {
	return e.exts.Names()
}

// MemoryUsage reports the host memory backing the address space.
func (e *Environment) MemoryUsage() string {
	return e.bus.Usage()
}
