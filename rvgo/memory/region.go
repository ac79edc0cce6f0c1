package memory

import (
	"fmt"
	"strings"
)

// Width is the size in bytes of a single memory access.
type Width uint8

const (
	Byte Width = 1
	Half Width = 2
	Word Width = 4
)

func (w Width) String() string {
	switch w {
	case Byte:
		return "byte"
	case Half:
		return "half-word"
	case Word:
		return "word"
	default:
		return fmt.Sprintf("width(%d)", uint8(w))
	}
}

func (w Width) valid() bool {
	return w == Byte || w == Half || w == Word
}

// Perm is the set of accesses a region allows.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec

	PermRX  = PermRead | PermExec
	PermRWX = PermRead | PermWrite | PermExec
)

func (p Perm) Has(q Perm) bool {
	return p&q == q
}

func (p Perm) String() string {
	var b strings.Builder
	for _, f := range []struct {
		bit Perm
		c   byte
	}{{PermRead, 'r'}, {PermWrite, 'w'}, {PermExec, 'x'}} {
		if p.Has(f.bit) {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func (p Perm) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Perm) UnmarshalText(text []byte) error {
	if len(text) != 3 {
		return fmt.Errorf("invalid permission string %q", text)
	}
	var out Perm
	for i, bit := range []Perm{PermRead, PermWrite, PermExec} {
		switch text[i] {
		case "rwx"[i]:
			out |= bit
		case '-':
		default:
			return fmt.Errorf("invalid permission string %q", text)
		}
	}
	*p = out
	return nil
}

// Region is a contiguous span of the address space backed by host memory.
type Region struct {
	Name string
	Base uint32
	Perm Perm

	data []byte
}

// NewRegion allocates a zero-initialized region of size bytes.
func NewRegion(name string, base uint32, size uint32, perm Perm) *Region {
	return &Region{
		Name: name,
		Base: base,
		Perm: perm,
		data: make([]byte, size),
	}
}

// NewRegionFrom creates a region sized to, and backed by a copy of, the given contents.
func NewRegionFrom(name string, base uint32, contents []byte, perm Perm) *Region {
	r := NewRegion(name, base, uint32(len(contents)), perm)
	copy(r.data, contents)
	return r
}

func (r *Region) Size() uint32 {
	return uint32(len(r.data))
}

// End is the first address past the region. It may be 1<<32.
func (r *Region) End() uint64 {
	return uint64(r.Base) + uint64(len(r.data))
}

func (r *Region) contains(addr uint32) bool {
	return addr >= r.Base && uint64(addr) < r.End()
}

func (r *Region) Info() RegionInfo {
	return RegionInfo{
		Name: r.Name,
		Base: r.Base,
		Size: r.Size(),
		Perm: r.Perm,
	}
}

func (r *Region) String() string {
	return fmt.Sprintf("%s [%08x, %08x) %s", r.Name, r.Base, r.End(), r.Perm)
}

// RegionInfo describes a region without its contents.
type RegionInfo struct {
	Name string `json:"name"`
	Base uint32 `json:"base"`
	Size uint32 `json:"size"`
	Perm Perm   `json:"perm"`
}
