package memory

import (
	"math/rand"
	"testing"
)

const (
	smallDataset = 1_000
	largeDataset = 100_000
)

func BenchmarkBusOperations(b *testing.B) {
	benchmarks := []struct {
		name string
		fn   func(b *testing.B, m *Bus)
	}{
		{"RandomReadWrite_Small", benchRandomReadWrite(smallDataset)},
		{"RandomReadWrite_Large", benchRandomReadWrite(largeDataset)},
		{"SequentialReadWrite", benchSequentialReadWrite},
		{"Fetch", benchFetch},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			m, err := NewBus(
				NewRegion("rom", 0, 4096, PermRX),
				NewRegion("ram", 0x8000_0000, 1<<20, PermRWX),
			)
			if err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			bm.fn(b, m)
		})
	}
}

func benchRandomReadWrite(size int) func(b *testing.B, m *Bus) {
	return func(b *testing.B, m *Bus) {
		addresses := make([]uint32, size)
		for i := range addresses {
			addresses[i] = 0x8000_0000 + uint32(rand.Intn(1<<20-4))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			addr := addresses[i%len(addresses)]
			if i%2 == 0 {
				_ = m.Write(addr, Word, uint32(i))
			} else {
				_, _ = m.Read(addr, Word)
			}
		}
	}
}

func benchSequentialReadWrite(b *testing.B, m *Bus) {
	for i := 0; i < b.N; i++ {
		addr := 0x8000_0000 + uint32(i*4)%(1<<20)
		if i%2 == 0 {
			_ = m.Write(addr, Word, uint32(i))
		} else {
			_, _ = m.Read(addr, Word)
		}
	}
}

func benchFetch(b *testing.B, m *Bus) {
	for i := 0; i < b.N; i++ {
		_, _ = m.FetchInstruction(uint32(i*4) % 4096)
	}
}
