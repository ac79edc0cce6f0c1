package memory

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bus owns the address space: an ordered set of non-overlapping regions.
// Addresses outside every region are unmapped.
//
// All methods are safe for concurrent use; the region set is fixed after NewBus.
type Bus struct {
	mu      sync.RWMutex
	regions []*Region // sorted by base
}

// NewBus assembles a bus from the given regions, rejecting any overlap.
func NewBus(regions ...*Region) (*Bus, error) {
	sorted := make([]*Region, 0, len(regions))
	for _, r := range regions {
		if r.End() > 1<<32 {
			return nil, fmt.Errorf("region %s exceeds the 32-bit address space: %w", r, ErrOutOfBounds)
		}
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Base < sorted[j].Base
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Size() == 0 || cur.Size() == 0 {
			continue
		}
		if uint64(cur.Base) < prev.End() {
			return nil, fmt.Errorf("%s and %s: %w", prev, cur, ErrOverlap)
		}
	}
	return &Bus{regions: sorted}, nil
}

// lookup returns the region covering addr, or nil. Caller holds mu.
func (b *Bus) lookup(addr uint32) *Region {
	// first region with a base above addr; the candidate is the one before it
	i := sort.Search(len(b.regions), func(i int) bool {
		return b.regions[i].Base > addr
	})
	for i > 0 {
		i--
		r := b.regions[i]
		if r.contains(addr) {
			return r
		}
		if r.Size() != 0 {
			return nil
		}
		// empty regions cover nothing; keep looking below them
	}
	return nil
}

// resolve finds the region for an access and returns the offset of addr within it.
// The covering region is computed before permission and bounds are checked.
func (b *Bus) resolve(op Op, addr uint32, w Width, need Perm) (*Region, uint32, error) {
	if !w.valid() {
		panic(fmt.Errorf("invalid access width %d", w))
	}
	r := b.lookup(addr)
	if r == nil {
		return nil, 0, &AccessError{Op: op, Addr: addr, Width: w, Err: ErrOutOfBounds}
	}
	if !r.Perm.Has(need) {
		return nil, 0, &AccessError{Op: op, Addr: addr, Width: w, Region: r.Name, Err: ErrPermissionDenied}
	}
	if uint64(addr)+uint64(w) > r.End() {
		// accesses never spill into an adjacent region, even a contiguous one
		return nil, 0, &AccessError{Op: op, Addr: addr, Width: w, Region: r.Name, Err: ErrOutOfBounds}
	}
	return r, addr - r.Base, nil
}

func loadLE(d []byte, w Width) uint32 {
	var v uint32
	for i := Width(0); i < w; i++ {
		v |= uint32(d[i]) << (8 * i)
	}
	return v
}

func storeLE(d []byte, w Width, v uint32) {
	for i := Width(0); i < w; i++ {
		d[i] = byte(v >> (8 * i))
	}
}

// Read returns the little-endian value of w bytes at addr, zero-extended.
func (b *Bus) Read(addr uint32, w Width) (uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, off, err := b.resolve(OpRead, addr, w, PermRead)
	if err != nil {
		return 0, err
	}
	return loadLE(r.data[off:], w), nil
}

// CheckWrite reports the error Write would return, without storing anything.
func (b *Bus) CheckWrite(addr uint32, w Width) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, _, err := b.resolve(OpWrite, addr, w, PermWrite)
	return err
}

// Write stores the low w bytes of v at addr, little-endian.
func (b *Bus) Write(addr uint32, w Width, v uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, off, err := b.resolve(OpWrite, addr, w, PermWrite)
	if err != nil {
		return err
	}
	storeLE(r.data[off:], w, v)
	return nil
}

// FetchInstruction reads the instruction word at addr. The address must be 4-byte
// aligned and the covering region executable.
func (b *Bus) FetchInstruction(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, &AccessError{Op: OpFetch, Addr: addr, Width: Word, Err: ErrMisalignedFetch}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, off, err := b.resolve(OpFetch, addr, Word, PermExec)
	if err != nil {
		return 0, err
	}
	return loadLE(r.data[off:], Word), nil
}

// LoadImage copies data into the region covering addr, ignoring write protection.
// It is meant for populating ROM at construction time.
func (b *Bus) LoadImage(addr uint32, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(data) == 0 {
		return nil
	}
	r := b.lookup(addr)
	if r == nil || uint64(addr)+uint64(len(data)) > r.End() {
		return fmt.Errorf("image of %d bytes at %08x does not fit a single region: %w", len(data), addr, ErrOutOfBounds)
	}
	copy(r.data[addr-r.Base:], data)
	return nil
}

// Peek copies n bytes starting at addr, ignoring permissions. The range must lie
// in a single region. It never mutates the bus.
func (b *Bus) Peek(addr uint32, n uint32) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r := b.lookup(addr)
	if r == nil || uint64(addr)+uint64(n) > r.End() {
		return nil, &AccessError{Op: OpRead, Addr: addr, Width: Byte, Err: ErrOutOfBounds}
	}
	off := addr - r.Base
	out := make([]byte, n)
	copy(out, r.data[off:off+n])
	return out, nil
}

// Clone returns a deep copy of the bus.
func (b *Bus) Clone() *Bus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	regions := make([]*Region, len(b.regions))
	for i, r := range b.regions {
		regions[i] = NewRegionFrom(r.Name, r.Base, r.data, r.Perm)
	}
	return &Bus{regions: regions}
}

// ZeroWritable clears every writable region (RAM); read-only regions keep their contents.
func (b *Bus) ZeroWritable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.regions {
		if r.Perm.Has(PermWrite) {
			clear(r.data)
		}
	}
}

func (b *Bus) Regions() []RegionInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]RegionInfo, 0, len(b.regions))
	for _, r := range b.regions {
		out = append(out, r.Info())
	}
	return out
}

// AppendEncoding appends a canonical binary form of every region, in address order.
func (b *Bus) AppendEncoding(out []byte) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out = binary.BigEndian.AppendUint32(out, uint32(len(b.regions)))
	for _, r := range b.regions {
		out = binary.BigEndian.AppendUint32(out, r.Base)
		out = binary.BigEndian.AppendUint32(out, r.Size())
		out = append(out, byte(r.Perm))
		out = append(out, r.data...)
	}
	return out
}

// Usage reports the amount of host memory backing the bus.
func (b *Bus) Usage() string {
	b.mu.RLock()
	var total uint64
	for _, r := range b.regions {
		total += uint64(r.Size())
	}
	b.mu.RUnlock()
	const unit = 1024
	if total < unit {
		return fmt.Sprintf("%d B", total)
	}
	div, exp := uint64(unit), 0
	for n := total / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	// KiB, MiB, GiB, ...
	return fmt.Sprintf("%.1f %ciB", float64(total)/float64(div), "KMGTPE"[exp])
}

type regionEntry struct {
	RegionInfo
	Data hexutil.Bytes `json:"data"`
}

func (b *Bus) MarshalJSON() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]regionEntry, 0, len(b.regions))
	for _, r := range b.regions {
		entries = append(entries, regionEntry{
			RegionInfo: r.Info(),
			Data:       r.data,
		})
	}
	return json.Marshal(entries)
}

func (b *Bus) UnmarshalJSON(data []byte) error {
	var entries []regionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	regions := make([]*Region, 0, len(entries))
	for i, e := range entries {
		if uint32(len(e.Data)) != e.Size {
			return fmt.Errorf("region entry %d (%s): size %d does not match %d data bytes", i, e.Name, e.Size, len(e.Data))
		}
		regions = append(regions, NewRegionFrom(e.Name, e.Base, e.Data, e.Perm))
	}
	nb, err := NewBus(regions...)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regions = nb.regions
	return nil
}
