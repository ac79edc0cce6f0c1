package memory

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds      = errors.New("out of bounds")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMisalignedFetch  = errors.New("misaligned instruction fetch")
	ErrOverlap          = errors.New("overlapping regions")
)

// Op classifies a bus access.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
	OpFetch
)

func (op Op) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFetch:
		return "fetch"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// AccessError describes a rejected bus access. Err is one of the package sentinels.
type AccessError struct {
	Op     Op
	Addr   uint32
	Width  Width
	Region string // empty when the address is unmapped
	Err    error
}

func (e *AccessError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("%s of %s at %08x: %v", e.Op, e.Width, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s of %s at %08x (%s): %v", e.Op, e.Width, e.Addr, e.Region, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
