package riscv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHexU32(t *testing.T) {
	require.Equal(t, "0000abcd", HexU32(0xABCD).String())
	require.Equal(t, "00000004", HexU32(4).String())
	txt, err := HexU32(0x80000000).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "80000000", string(txt))
}
