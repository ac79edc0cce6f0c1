package hart

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroRegister(t *testing.T) {
	r := NewRegisters(0)
	for _, v := range []uint32{1, 0xFFFFFFFF, 0x80000000, 42} {
		r.Write(0, v)
		require.Zero(t, r.Read(0))
	}
	require.Zero(t, r.All()[0])
}

func TestRegisterReadWrite(t *testing.T) {
	r := NewRegisters(0x1000)
	require.Equal(t, uint32(0x1000), r.PC())
	rng := rand.New(rand.NewSource(1234))
	var expected [32]uint32
	for i := 0; i < 1000; i++ {
		idx := uint8(rng.Intn(32))
		v := rng.Uint32()
		r.Write(idx, v)
		if idx != 0 {
			expected[idx] = v
		}
	}
	for i := uint8(0); i < 32; i++ {
		require.Equal(t, expected[i], r.Read(i), "x%d", i)
	}
	require.Equal(t, expected, r.All())
}

func TestRegistersPCUnchecked(t *testing.T) {
	r := NewRegisters(0)
	r.SetPC(0x8000_0002)
	require.Equal(t, uint32(0x8000_0002), r.PC())
}

func TestRegistersReset(t *testing.T) {
	r := NewRegisters(0)
	r.Write(5, 55)
	r.SetPC(0x40)
	r.Reset(0x8)
	require.Zero(t, r.Read(5))
	require.Equal(t, uint32(0x8), r.PC())
}

func TestRegisterIndexOutOfRange(t *testing.T) {
	r := NewRegisters(0)
	require.Panics(t, func() { r.Read(32) })
	require.Panics(t, func() { r.Write(40, 1) })
}
