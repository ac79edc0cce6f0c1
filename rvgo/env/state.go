package env

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/memory"
)

// Snapshot is a read-only view of the machine for display.
type Snapshot struct {
	PC         uint32              `json:"pc"`
	Cycle      uint64              `json:"cycle"`
	Registers  [32]uint32          `json:"registers"`
	Regions    []memory.RegionInfo `json:"regions"`
	Extensions []string            `json:"extensions"`
	Trap       *TrapState          `json:"trap,omitempty"`
}

// Inspect captures the current state. It never mutates the environment.
func (e *Environment) Inspect() Snapshot {
	return Snapshot{
		PC:         e.regs.PC(),
		Cycle:      e.clock.Cycles(),
		Registers:  e.regs.All(),
		Regions:    e.bus.Regions(),
		Extensions: e.exts.Names(),
		Trap:       trapState(e.trap),
	}
}

type TrapState struct {
	Kind    isa.TrapKind `json:"kind"`
	PC      uint32       `json:"pc"`
	Word    uint32       `json:"word"`
	Message string       `json:"message,omitempty"`
}

func trapState(t *isa.Trap) *TrapState {
	if t == nil {
		return nil
	}
	ts := &TrapState{Kind: t.Kind, PC: t.PC, Word: t.Word}
	if t.Err != nil {
		ts.Message = t.Err.Error()
	}
	return ts
}

func (ts *TrapState) trap() *isa.Trap {
	if ts == nil {
		return nil
	}
	t := &isa.Trap{Kind: ts.Kind, PC: ts.PC, Word: ts.Word}
	if ts.Message != "" {
		t.Err = errors.New(ts.Message)
	}
	return t
}

// State is the complete, serializable machine state.
type State struct {
	PC         uint32      `json:"pc"`
	Cycle      uint64      `json:"cycle"`
	Registers  [32]uint32  `json:"registers"`
	Extensions []string    `json:"extensions"`
	Trap       *TrapState  `json:"trap,omitempty"`
	Memory     *memory.Bus `json:"memory"`
}

// EncodeState appends the canonical binary form hashed by StateHash.
func (s *State) EncodeState() []byte {
	out := make([]byte, 0, 4+8+32*4+1)
	out = binary.BigEndian.AppendUint32(out, s.PC)
	out = binary.BigEndian.AppendUint64(out, s.Cycle)
	for _, r := range s.Registers {
		out = binary.BigEndian.AppendUint32(out, r)
	}
	if s.Trap != nil {
		out = append(out, byte(s.Trap.Kind))
	} else {
		out = append(out, 0)
	}
	return s.Memory.AppendEncoding(out)
}

func (s *State) Hash() common.Hash {
	return crypto.Keccak256Hash(s.EncodeState())
}

// Save returns a deep copy of the machine state.
func (e *Environment) Save() *State {
	return &State{
		PC:         e.regs.PC(),
		Cycle:      e.clock.Cycles(),
		Registers:  e.regs.All(),
		Extensions: e.exts.Names(),
		Trap:       trapState(e.trap),
		Memory:     e.bus.Clone(),
	}
}

// StateHash is a Keccak-256 digest over PC, clock, registers, latched trap and
// every memory region. Equal hashes mean equal machine state.
func (e *Environment) StateHash() common.Hash {
	return e.Save().Hash()
}

// Restore replaces the machine state with s. The memory layout and extension set
// of s must match the environment's.
func (e *Environment) Restore(s *State) error {
	if s.Memory == nil {
		return errors.New("state has no memory")
	}
	if !slices.Equal(s.Memory.Regions(), e.bus.Regions()) {
		return fmt.Errorf("state memory layout %v does not match %v", s.Memory.Regions(), e.bus.Regions())
	}
	if !slices.Equal(s.Extensions, e.exts.Names()) {
		return fmt.Errorf("state was saved with extensions %v, environment has %v", s.Extensions, e.exts.Names())
	}
	if s.Registers[0] != 0 {
		return errors.New("state has a non-zero x0")
	}
	e.bus = s.Memory.Clone()
	for i, v := range s.Registers {
		e.regs.Write(uint8(i), v)
	}
	e.regs.SetPC(s.PC)
	e.clock.Restore(s.Cycle)
	e.trap = s.Trap.trap()
	return nil
}
