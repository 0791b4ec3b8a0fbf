package memcache

import "fmt"

// PhysAddr is an address in the emulated physical address space.
// It is not a host pointer.
type PhysAddr uint32

// Memory gives the cache direct access to emulated memory.
//
// Span returns a readable and writable view of size bytes starting at addr.
// The view aliases emulated memory: writes through it are visible to the
// emulated CPU. Implementations return an error wrapping
// ErrAddressOutOfRange when the range leaves the address space.
type Memory interface {
	Span(addr PhysAddr, size uint32) ([]byte, error)
}

// FlatMemory is a contiguous block of emulated memory starting at a base
// address.
type FlatMemory struct {
	base PhysAddr
	data []byte
}

// NewFlatMemory allocates size bytes of emulated memory mapped at base.
func NewFlatMemory(base PhysAddr, size int) *FlatMemory {
	return &FlatMemory{base: base, data: make([]byte, size)}
}

// Base returns the first address of the block.
func (m *FlatMemory) Base() PhysAddr { return m.base }

// Len returns the size of the block in bytes.
func (m *FlatMemory) Len() int { return len(m.data) }

// Span implements Memory.
func (m *FlatMemory) Span(addr PhysAddr, size uint32) ([]byte, error) {
	if addr < m.base {
		return nil, fmt.Errorf("%w: %#08x below base %#08x", ErrAddressOutOfRange, addr, m.base)
	}
	off := uint64(addr - m.base)
	end := off + uint64(size)
	if end > uint64(len(m.data)) {
		return nil, fmt.Errorf("%w: [%#08x, +%d) past end of %d byte block",
			ErrAddressOutOfRange, addr, size, len(m.data))
	}
	return m.data[off:end:end], nil
}
