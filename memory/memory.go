// Package memory provides the guest physical memory view used by the rasterizer.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Physical memory layout of the emulated system.
const (
	VRAMBase  uint32 = 0x18000000
	VRAMSize  uint32 = 0x00600000
	FCRAMBase uint32 = 0x20000000
	FCRAMSize uint32 = 0x08000000
)

// Errors returned by Flat.
var (
	// ErrOverlap is returned when a region overlaps an existing one.
	ErrOverlap = errors.New("memory: region overlaps existing mapping")

	// ErrEmptyRegion is returned for zero-sized regions.
	ErrEmptyRegion = errors.New("memory: region size is zero")
)

// Memory resolves guest physical addresses to host bytes.
//
// PhysicalPointer returns the slice starting at addr and running to the end
// of the backing region, or nil when addr is not mapped. The slice must
// reflect the latest guest-visible bytes.
type Memory interface {
	PhysicalPointer(addr uint32) []byte
}

// region is one contiguous backing store.
type region struct {
	base uint32
	data []byte
}

// Flat is a Memory backed by a sorted set of byte slices.
//
// Flat is safe for concurrent use; mapping changes are rare and lookups
// take a read lock.
type Flat struct {
	mu      sync.RWMutex
	regions []region
}

// NewFlat returns an empty memory map.
func NewFlat() *Flat {
	return &Flat{}
}

// NewDefault maps VRAM and an FCRAM region of the given size.
func NewDefault(fcramSize uint32) *Flat {
	m := NewFlat()
	_ = m.Map(VRAMBase, make([]byte, VRAMSize))
	if fcramSize > 0 {
		_ = m.Map(FCRAMBase, make([]byte, fcramSize))
	}
	return m
}

// Map registers data at base.
func (m *Flat) Map(base uint32, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyRegion
	}
	end := uint64(base) + uint64(len(data))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regions {
		rEnd := uint64(r.base) + uint64(len(r.data))
		if uint64(base) < rEnd && uint64(r.base) < end {
			return fmt.Errorf("%w: %#08x", ErrOverlap, base)
		}
	}
	m.regions = append(m.regions, region{base: base, data: data})
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].base < m.regions[j].base })
	return nil
}

// PhysicalPointer implements Memory.
func (m *Flat) PhysicalPointer(addr uint32) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := sort.Search(len(m.regions), func(i int) bool {
		r := m.regions[i]
		return uint64(r.base)+uint64(len(r.data)) > uint64(addr)
	})
	if i == len(m.regions) || m.regions[i].base > addr {
		return nil
	}
	r := m.regions[i]
	return r.data[addr-r.base:]
}

// Read returns the size bytes at addr, or nil if the range is not mapped.
func Read(m Memory, addr, size uint32) []byte {
	p := m.PhysicalPointer(addr)
	if uint32(len(p)) < size {
		return nil
	}
	return p[:size:size]
}

// Write copies data to addr. It reports false if the range is not mapped.
func Write(m Memory, addr uint32, data []byte) bool {
	p := m.PhysicalPointer(addr)
	if len(p) < len(data) {
		return false
	}
	copy(p, data)
	return true
}
