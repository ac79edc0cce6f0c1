package isa

import (
	"errors"
	"fmt"

	"github.com/z2l-emu/z2l/rvgo/memory"
)

// Claim declares a slice of the opcode space: every word w with w&Mask == Match.
type Claim struct {
	Mask  uint32
	Match uint32
}

func (c Claim) Contains(word uint32) bool {
	return word&c.Mask == c.Match
}

// Overlaps reports whether some word is covered by both claims.
func (c Claim) Overlaps(o Claim) bool {
	return (c.Match^o.Match)&c.Mask&o.Mask == 0
}

func (c Claim) String() string {
	return fmt.Sprintf("%08x/%08x", c.Match, c.Mask)
}

// Machine is the mutation handle an extension executes against. Effects become
// visible only if Execute returns nil.
type Machine interface {
	Reg(i uint8) uint32
	SetReg(i uint8, v uint32)
	// PC is the address of the executing instruction.
	PC() uint32
	// Jump replaces the default PC+4 advance.
	Jump(target uint32)
	Load(addr uint32, w memory.Width) (uint32, error)
	Store(addr uint32, w memory.Width, v uint32) error
}

// Extension is a pluggable instruction subset.
type Extension interface {
	Name() string
	// Claims lists the opcode space the extension may decode. Claims of different
	// extensions in one set must be disjoint.
	Claims() []Claim
	// Decode returns false for words the extension does not recognize.
	Decode(word uint32) (Instruction, bool)
	// Execute applies a previously decoded instruction. Memory errors from the
	// Machine may be returned as-is; other failures should be a *Trap.
	Execute(in Instruction, m Machine) error
}

// ExtensionSet consults its extensions in registration order; the first to decode a word wins.
type ExtensionSet struct {
	exts []Extension
}

// NewExtensionSet assembles base followed by extra, rejecting duplicate names and
// overlapping claims with a *ConflictError.
func NewExtensionSet(base Extension, extra ...Extension) (*ExtensionSet, error) {
	if base == nil {
		return nil, errors.New("extension set requires a base extension")
	}
	exts := append([]Extension{base}, extra...)
	for i, a := range exts {
		if a == nil {
			return nil, fmt.Errorf("extension %d is nil", i)
		}
		for _, b := range exts[:i] {
			if a.Name() == b.Name() {
				return nil, &ConflictError{First: b.Name(), Second: a.Name(), Duplicate: true}
			}
			for _, cb := range b.Claims() {
				for _, ca := range a.Claims() {
					if cb.Overlaps(ca) {
						return nil, &ConflictError{First: b.Name(), Second: a.Name(), Claim: cb}
					}
				}
			}
		}
	}
	return &ExtensionSet{exts: exts}, nil
}

// Decode finds the extension that recognizes word. The error is an IllegalInstruction trap.
func (s *ExtensionSet) Decode(word uint32) (Extension, Instruction, error) {
	for _, ext := range s.exts {
		if in, ok := ext.Decode(word); ok {
			return ext, in, nil
		}
	}
	return nil, Instruction{}, &Trap{Kind: IllegalInstruction, Word: word, Err: ErrIllegalInstruction}
}

// Disassemble renders word, or reports it as unknown.
func (s *ExtensionSet) Disassemble(word uint32) string {
	if _, in, err := s.Decode(word); err == nil {
		return in.String()
	}
	return fmt.Sprintf("unknown %08x", word)
}

func (s *ExtensionSet) Names() []string {
	out := make([]string, len(s.exts))
	for i, ext := range s.exts {
		out[i] = ext.Name()
	}
	return out
}
