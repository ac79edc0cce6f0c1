package hart

import "fmt"

// Registers is the integer register file of a single hart: x0..x31 plus the PC.
// x0 is hard-wired to zero; writes to it are discarded.
type Registers struct {
	x  [32]uint32
	pc uint32
}

// NewRegisters returns a zeroed register file with the PC set to resetPC.
func NewRegisters(resetPC uint32) *Registers {
	return &Registers{pc: resetPC}
}

func checkIndex(i uint8) {
	if i >= 32 {
		panic(fmt.Errorf("register index %d out of range", i))
	}
}

func (r *Registers) Read(i uint8) uint32 {
	checkIndex(i)
	return r.x[i]
}

func (r *Registers) Write(i uint8, v uint32) {
	checkIndex(i)
	if i == 0 {
		return
	}
	r.x[i] = v
}

// PC is unchecked here; alignment and mapping are validated at the next fetch.
func (r *Registers) PC() uint32 {
	return r.pc
}

func (r *Registers) SetPC(v uint32) {
	r.pc = v
}

// All returns a copy of x0..x31.
func (r *Registers) All() [32]uint32 {
	return r.x
}

// Reset zeroes every register and sets the PC to resetPC.
func (r *Registers) Reset(resetPC uint32) {
	r.x = [32]uint32{}
	r.pc = resetPC
}
