package isa

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalInstruction = errors.New("illegal instruction")
	ErrExtensionConflict  = errors.New("extension conflict")
)

// TrapKind classifies why a step could not retire its instruction.
type TrapKind uint8

const (
	IllegalInstruction TrapKind = iota + 1
	InstructionAccessFault
	MisalignedFetch
	MemoryFault
	EnvironmentCall
	Breakpoint
)

var trapKindNames = map[TrapKind]string{
	IllegalInstruction:     "illegal-instruction",
	InstructionAccessFault: "instruction-access-fault",
	MisalignedFetch:        "misaligned-fetch",
	MemoryFault:            "memory-fault",
	EnvironmentCall:        "environment-call",
	Breakpoint:             "breakpoint",
}

func (k TrapKind) String() string {
	if s, ok := trapKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("trap(%d)", uint8(k))
}

func (k TrapKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TrapKind) UnmarshalText(text []byte) error {
	for kind, name := range trapKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown trap kind %q", text)
}

// Trap is a classified fault raised while stepping. PC is the address of the
// faulting instruction and Word its encoding (zero if the fetch itself failed).
type Trap struct {
	Kind TrapKind
	PC   uint32
	Word uint32
	Err  error
}

// NewTrap creates a trap of the given kind. The environment fills in PC and Word.
func NewTrap(kind TrapKind, err error) *Trap {
	return &Trap{Kind: kind, Err: err}
}

func (t *Trap) Error() string {
	if t.Err == nil {
		return fmt.Sprintf("%s at pc %08x", t.Kind, t.PC)
	}
	return fmt.Sprintf("%s at pc %08x: %v", t.Kind, t.PC, t.Err)
}

func (t *Trap) Unwrap() error {
	return t.Err
}

// ConflictError reports two extensions that cannot be assembled into one set.
type ConflictError struct {
	First, Second string
	// Claim is the claim of First that Second overlaps, unless the two share a name.
	Claim     Claim
	Duplicate bool
}

func (e *ConflictError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("%v: %s registered twice", ErrExtensionConflict, e.First)
	}
	return fmt.Sprintf("%v: %s overlaps %s claim %s", ErrExtensionConflict, e.Second, e.First, e.Claim)
}

func (e *ConflictError) Unwrap() error {
	return ErrExtensionConflict
}
