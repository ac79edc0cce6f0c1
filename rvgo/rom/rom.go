// Package rom produces flat ROM images: raw binaries read verbatim, or RISC-V ELF
// executables flattened from their loadable segments.
package rom

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/z2l-emu/z2l/rvgo/riscv"
)

// MaxSize is the largest image that fits below RAM.
const MaxSize = riscv.RAMBase - riscv.ROMBase

// Load reads a raw flat image.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM image: %w", err)
	}
	if uint64(len(data)) > uint64(MaxSize) {
		return nil, fmt.Errorf("ROM image %q is %d bytes, larger than the %d byte ROM window", path, len(data), MaxSize)
	}
	return data, nil
}

// FromELF flattens the PT_LOAD segments of a 32-bit RISC-V executable into an image
// based at the ROM base. Gaps and .bss are zero-filled. Segments must lie inside the
// ROM window and the entry point must be the reset vector.
func FromELF(f *elf.File) ([]byte, error) {
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("ELF is not RISC-V, but got %q", f.Machine.String())
	}
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("ELF is %s, expected a 32-bit executable", f.Class)
	}
	if f.Entry != uint64(riscv.ResetVector) {
		return nil, fmt.Errorf("ELF entry point %#x is not the reset vector %#x", f.Entry, riscv.ResetVector)
	}

	var out []byte
	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, fmt.Errorf("invalid PT_LOAD program segment %d, file size (%d) > mem size (%d)", i, prog.Filesz, prog.Memsz)
		}
		start := prog.Paddr
		end := start + prog.Memsz
		if start < uint64(riscv.ROMBase) || end > uint64(riscv.ROMBase)+uint64(MaxSize) {
			return nil, fmt.Errorf("program segment %d [%#x, %#x) is outside the ROM window", i, start, end)
		}
		off := start - uint64(riscv.ROMBase)
		if need := off + prog.Memsz; uint64(len(out)) < need {
			out = append(out, make([]byte, need-uint64(len(out)))...)
		}
		r := io.NewSectionReader(prog, 0, int64(prog.Filesz))
		if _, err := io.ReadFull(r, out[off:off+prog.Filesz]); err != nil {
			return nil, fmt.Errorf("failed to read program segment %d: %w", i, err)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ELF has no loadable segments")
	}
	return out, nil
}

// LoadELF opens path and flattens it with FromELF.
func LoadELF(path string) ([]byte, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %q: %w", path, err)
	}
	defer f.Close()
	return FromELF(f)
}

// Open loads path as an ELF if it carries the ELF magic, and as a raw image otherwise.
func Open(path string) ([]byte, error) {
	data, err := Load(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
		return data, nil
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file %q: %w", path, err)
	}
	return FromELF(f)
}

type SortedSymbols []elf.Symbol

// FindSymbol finds the symbol that intersects with the given addr, or nil if none exists
func (s SortedSymbols) FindSymbol(addr uint32) elf.Symbol {
	// find first symbol with higher start. Or n if no such symbol exists
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Value > uint64(addr)
	})
	if i == 0 {
		return elf.Symbol{Name: "!start", Value: 0}
	}
	out := &s[i-1]
	if out.Value+out.Size < uint64(addr) { // addr may be pointing to a gap between symbols
		return elf.Symbol{Name: "!gap", Value: uint64(addr)}
	}
	return *out
}

// Lookup finds the address of a symbol by name.
func (s SortedSymbols) Lookup(name string) (uint32, bool) {
	for _, sym := range s {
		if sym.Name == name {
			return uint32(sym.Value), true
		}
	}
	return 0, false
}

func Symbols(f *elf.File) (SortedSymbols, error) {
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols data: %w", err)
	}
	out := make(SortedSymbols, len(symbols))
	copy(out, symbols)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// LoadSymbols reads the symbol table of the ELF at path.
func LoadSymbols(path string) (SortedSymbols, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %q: %w", path, err)
	}
	defer f.Close()
	return Symbols(f)
}
