package rom

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type segment struct {
	addr  uint32
	data  []byte
	memsz uint32
}

// buildELF writes a minimal 32-bit little-endian executable with no section headers.
func buildELF(t *testing.T, machine elf.Machine, entry uint32, segs ...segment) []byte {
	t.Helper()
	const (
		ehsize    = 52
		phentsize = 32
	)
	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     uint16(len(segs)),
		Shentsize: 40,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	off := uint32(ehsize + phentsize*len(segs))
	for _, s := range segs {
		memsz := s.memsz
		if memsz == 0 {
			memsz = uint32(len(s.data))
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &elf.Prog32{
			Type:   uint32(elf.PT_LOAD),
			Off:    off,
			Vaddr:  s.addr,
			Paddr:  s.addr,
			Filesz: uint32(len(s.data)),
			Memsz:  memsz,
			Flags:  uint32(elf.PF_R | elf.PF_X),
			Align:  4,
		}))
		off += uint32(len(s.data))
	}
	for _, s := range segs {
		buf.Write(s.data)
	}
	return buf.Bytes()
}

func parse(t *testing.T, data []byte) *elf.File {
	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	return f
}

func TestFromELF(t *testing.T) {
	data := buildELF(t, elf.EM_RISCV, 0,
		segment{addr: 0, data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, memsz: 16},
		segment{addr: 0x20, data: []byte{0xAA, 0xBB, 0xCC, 0xDD}},
	)
	img, err := FromELF(parse(t, data))
	require.NoError(t, err)
	want := make([]byte, 0x24)
	copy(want, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(want[0x20:], []byte{0xAA, 0xBB, 0xCC, 0xDD})
	require.Equal(t, want, img)
}

func TestFromELFRejects(t *testing.T) {
	code := segment{addr: 0, data: []byte{0x13, 0, 0, 0}}
	cases := map[string][]byte{
		"wrong machine": buildELF(t, elf.EM_ARM, 0, code),
		"entry":         buildELF(t, elf.EM_RISCV, 0x100, code),
		"in ram":        buildELF(t, elf.EM_RISCV, 0, code, segment{addr: 0x8000_0000, data: []byte{1}}),
		"no segments":   buildELF(t, elf.EM_RISCV, 0),
	}
	for name, data := range cases {
		_, err := FromELF(parse(t, data))
		require.Error(t, err, name)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	raw := []byte{0x93, 0x00, 0x10, 0x00}
	rawPath := filepath.Join(dir, "prog.bin")
	require.NoError(t, os.WriteFile(rawPath, raw, 0o644))
	got, err := Open(rawPath)
	require.NoError(t, err)
	require.Equal(t, raw, got)

	elfPath := filepath.Join(dir, "prog.elf")
	require.NoError(t, os.WriteFile(elfPath, buildELF(t, elf.EM_RISCV, 0, segment{addr: 4, data: raw}), 0o644))
	got, err = Open(elfPath)
	require.NoError(t, err)
	require.Equal(t, append([]byte{0, 0, 0, 0}, raw...), got)
	got, err = LoadELF(elfPath)
	require.NoError(t, err)
	require.Len(t, got, 8)

	_, err = Open(filepath.Join(dir, "missing.bin"))
	require.Error(t, err)
}

func TestFindSymbol(t *testing.T) {
	syms := SortedSymbols{
		{Name: "_start", Value: 0x0, Size: 0x10},
		{Name: "loop", Value: 0x10, Size: 0x8},
		{Name: "data", Value: 0x40, Size: 0x4},
	}
	require.Equal(t, "_start", syms.FindSymbol(0x4).Name)
	require.Equal(t, "loop", syms.FindSymbol(0x10).Name)
	require.Equal(t, "loop", syms.FindSymbol(0x14).Name)
	require.Equal(t, "!gap", syms.FindSymbol(0x30).Name)
	require.Equal(t, "data", syms.FindSymbol(0x42).Name)

	empty := SortedSymbols{}
	require.Equal(t, "!start", empty.FindSymbol(0).Name)

	addr, ok := syms.Lookup("data")
	require.True(t, ok)
	require.Equal(t, uint32(0x40), addr)
	_, ok = syms.Lookup("main")
	require.False(t, ok)
}
