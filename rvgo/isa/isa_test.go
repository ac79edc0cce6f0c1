package isa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/z2l-emu/z2l/rvgo/memory"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

func TestImmediateRoundTrip(t *testing.T) {
	t.Run("I", func(t *testing.T) {
		for _, imm := range []int32{0, 1, -1, 2047, -2048, 0x555, -0x555} {
			w := EncodeI(riscv.OpcodeOpImm, 5, 0, 6, imm)
			require.Equal(t, imm, Parse(w, FormatI).Imm)
		}
	})
	t.Run("S", func(t *testing.T) {
		for _, imm := range []int32{0, 31, 32, -1, 2047, -2048, -33} {
			w := EncodeS(riscv.OpcodeStore, 2, 1, 2, imm)
			in := Parse(w, FormatS)
			require.Equal(t, imm, in.Imm)
			require.Equal(t, uint8(1), in.Rs1)
			require.Equal(t, uint8(2), in.Rs2)
		}
	})
	t.Run("B", func(t *testing.T) {
		for imm := int32(-4096); imm < 4096; imm += 2 {
			w := EncodeB(riscv.OpcodeBranch, 0, 3, 4, imm)
			require.Equal(t, imm, Parse(w, FormatB).Imm, "offset %d", imm)
		}
	})
	t.Run("U", func(t *testing.T) {
		for _, imm := range []int32{0, 0x1000, -0x1000, 0x7FFFF000, -0x80000000, 0x12345000} {
			w := EncodeU(riscv.OpcodeLUI, 7, imm)
			require.Equal(t, imm, Parse(w, FormatU).Imm)
		}
		require.Equal(t, int32(0x12345000), Parse(EncodeU(riscv.OpcodeLUI, 7, 0x12345FFF), FormatU).Imm)
	})
	t.Run("J", func(t *testing.T) {
		for _, imm := range []int32{0, 2, -2, 2048, -2048, 0xFFFFE, -0x100000, 0x7FE, 0x800} {
			w := EncodeJ(riscv.OpcodeJAL, 1, imm)
			in := Parse(w, FormatJ)
			require.Equal(t, imm, in.Imm)
			require.Equal(t, uint8(1), in.Rd)
		}
	})
}

func TestParseKnownWords(t *testing.T) {
	// addi a0, zero, -1
	in := Parse(0xFFF00513, FormatI)
	require.Equal(t, uint8(riscv.RegA0), in.Rd)
	require.Equal(t, uint8(0), in.Rs1)
	require.Equal(t, int32(-1), in.Imm)
	require.Equal(t, uint8(riscv.OpcodeOpImm), Opcode(0xFFF00513))

	// sub t0, t1, t2
	in = Parse(0x407302B3, FormatR)
	require.Equal(t, uint8(5), in.Rd)
	require.Equal(t, uint8(6), in.Rs1)
	require.Equal(t, uint8(7), in.Rs2)
	require.Equal(t, uint8(0x20), in.Funct7)
}

func TestInstructionString(t *testing.T) {
	cases := []struct {
		in   Instruction
		want string
	}{
		{Instruction{Op: "add", Format: FormatR, Rd: 10, Rs1: 11, Rs2: 12}, "add a0, a1, a2"},
		{Instruction{Op: "addi", Format: FormatI, Rd: 2, Rs1: 2, Imm: -16}, "addi sp, sp, -16"},
		{Instruction{Op: "lw", Format: FormatI, Syntax: SyntaxMemory, Rd: 5, Rs1: 2, Imm: 8}, "lw t0, 8(sp)"},
		{Instruction{Op: "sw", Format: FormatS, Rs1: 2, Rs2: 1, Imm: 12}, "sw ra, 12(sp)"},
		{Instruction{Op: "bne", Format: FormatB, Rs1: 10, Rs2: 0, Imm: -8}, "bne a0, zero, -8"},
		{Instruction{Op: "lui", Format: FormatU, Rd: 10, Imm: -0x80000000}, "lui a0, 0x80000"},
		{Instruction{Op: "jal", Format: FormatJ, Rd: 1, Imm: 64}, "jal ra, 64"},
		{Instruction{Op: "ecall", Format: FormatI, Syntax: SyntaxBare}, "ecall"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.in.String())
	}
}

func TestClaimOverlap(t *testing.T) {
	op := Claim{Mask: riscv.MaskOpcode, Match: riscv.OpcodeOp}
	base := Claim{Mask: riscv.MaskOpcode | riscv.MaskFunct7, Match: riscv.OpcodeOp}
	mul := Claim{Mask: riscv.MaskOpcode | riscv.MaskFunct7, Match: 0x0200_0000 | riscv.OpcodeOp}
	load := Claim{Mask: riscv.MaskOpcode, Match: riscv.OpcodeLoad}

	require.True(t, op.Overlaps(base))
	require.True(t, base.Overlaps(op))
	require.True(t, op.Overlaps(mul))
	require.False(t, base.Overlaps(mul))
	require.False(t, load.Overlaps(op))
	require.True(t, mul.Contains(0x02C58533)) // mul a0, a1, a2
	require.False(t, base.Contains(0x02C58533))
}

// fakeExt recognizes any word its claims contain and records executions.
type fakeExt struct {
	name   string
	claims []Claim
	ran    int
}

func (f *fakeExt) Name() string    { return f.name }
func (f *fakeExt) Claims() []Claim { return f.claims }

func (f *fakeExt) Decode(word uint32) (Instruction, bool) {
	for _, c := range f.claims {
		if c.Contains(word) {
			in := Parse(word, FormatR)
			in.Op = Op(f.name)
			return in, true
		}
	}
	return Instruction{}, false
}

func (f *fakeExt) Execute(in Instruction, m Machine) error {
	f.ran++
	return nil
}

var _ Extension = (*fakeExt)(nil)

func TestExtensionSet(t *testing.T) {
	a := &fakeExt{name: "A", claims: []Claim{{Mask: riscv.MaskOpcode, Match: riscv.OpcodeOp}}}
	b := &fakeExt{name: "B", claims: []Claim{{Mask: riscv.MaskOpcode, Match: riscv.OpcodeLoad}}}

	t.Run("dispatch", func(t *testing.T) {
		set, err := NewExtensionSet(a, b)
		require.NoError(t, err)
		require.Equal(t, []string{"A", "B"}, set.Names())

		ext, in, err := set.Decode(0x00000003)
		require.NoError(t, err)
		require.Same(t, b, ext)
		require.Equal(t, Op("B"), in.Op)

		ext, _, err = set.Decode(0x00000033)
		require.NoError(t, err)
		require.Same(t, a, ext)
	})

	t.Run("illegal", func(t *testing.T) {
		set, err := NewExtensionSet(a, b)
		require.NoError(t, err)
		_, _, err = set.Decode(0xFFFFFFFF)
		require.ErrorIs(t, err, ErrIllegalInstruction)
		var trap *Trap
		require.True(t, errors.As(err, &trap))
		require.Equal(t, IllegalInstruction, trap.Kind)
		require.Equal(t, uint32(0xFFFFFFFF), trap.Word)
		require.Equal(t, "unknown ffffffff", set.Disassemble(0xFFFFFFFF))
	})

	t.Run("overlapping claims", func(t *testing.T) {
		narrow := &fakeExt{name: "N", claims: []Claim{{Mask: riscv.MaskOpcode | riscv.MaskFunct3, Match: 0x1000 | riscv.OpcodeOp}}}
		_, err := NewExtensionSet(a, b, narrow)
		require.ErrorIs(t, err, ErrExtensionConflict)
		var ce *ConflictError
		require.True(t, errors.As(err, &ce))
		require.Equal(t, "A", ce.First)
		require.Equal(t, "N", ce.Second)
		require.False(t, ce.Duplicate)
	})

	t.Run("duplicate name", func(t *testing.T) {
		again := &fakeExt{name: "A"}
		_, err := NewExtensionSet(a, again)
		require.ErrorIs(t, err, ErrExtensionConflict)
		var ce *ConflictError
		require.True(t, errors.As(err, &ce))
		require.True(t, ce.Duplicate)
	})

	t.Run("missing base", func(t *testing.T) {
		_, err := NewExtensionSet(nil)
		require.Error(t, err)
		_, err = NewExtensionSet(a, nil)
		require.Error(t, err)
	})
}

func TestTrapKindText(t *testing.T) {
	for k := IllegalInstruction; k <= Breakpoint; k++ {
		txt, err := k.MarshalText()
		require.NoError(t, err)
		var back TrapKind
		require.NoError(t, back.UnmarshalText(txt))
		require.Equal(t, k, back)
	}
	var k TrapKind
	require.Error(t, k.UnmarshalText([]byte("page-fault")))

	tr := &Trap{Kind: MemoryFault, PC: 0x10, Err: memory.ErrPermissionDenied}
	require.ErrorIs(t, tr, memory.ErrPermissionDenied)
	require.Equal(t, "memory-fault at pc 00000010: permission denied", tr.Error())
}
