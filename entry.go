package memcache

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// entryUsage lets a cache buffer feed the renderer directly and act as
// either end of a copy.
const entryUsage = gputypes.BufferUsageVertex |
	gputypes.BufferUsageUniform |
	gputypes.BufferUsageCopySrc |
	gputypes.BufferUsageCopyDst

// copyAlignment is the required alignment of buffer copy sizes and offsets.
const copyAlignment = 4

// Key identifies a cached range. It packs the address into the high
// 32 bits and the size into the low 32 bits.
type Key uint64

// MakeKey returns the registry key of the range [addr, addr+size).
func MakeKey(addr PhysAddr, size uint32) Key {
	return Key(uint64(addr)<<32 | uint64(size))
}

// Address returns the address half of the key.
func (k Key) Address() PhysAddr { return PhysAddr(k >> 32) }

// Size returns the size half of the key.
func (k Key) Size() uint32 { return uint32(k) }

// String returns the key as "address+size".
func (k Key) String() string {
	return fmt.Sprintf("%#08x+%d", uint32(k.Address()), k.Size())
}

// Entry mirrors one range of emulated memory in a GPU buffer.
//
// Entries are created and owned by a Driver. The GPU buffer is destroyed
// when the driver is closed; callers must not destroy it themselves.
// Entry state is only touched by the goroutine that records submissions.
type Entry struct {
	owner *Driver

	address   PhysAddr
	size      uint32
	transform Transform

	buffer     hal.Buffer
	bufferSize uint64

	digest        uint64
	hasDigest     bool
	lastValidated Epoch

	externalRefs int
}

// Key returns the registry key of the entry.
func (e *Entry) Key() Key { return MakeKey(e.address, e.size) }

// Address returns the first emulated address mirrored by the entry.
func (e *Entry) Address() PhysAddr { return e.address }

// Size returns the number of mirrored bytes.
func (e *Entry) Size() uint32 { return e.size }

// Transform returns the layout conversion applied to the entry.
func (e *Entry) Transform() Transform { return e.transform }

// Buffer returns the GPU buffer holding the mirrored bytes. Its size is
// BufferSize, which may exceed Size by the copy alignment padding.
func (e *Entry) Buffer() hal.Buffer { return e.buffer }

// BufferSize returns the allocated size of the GPU buffer.
func (e *Entry) BufferSize() uint64 { return e.bufferSize }

// Digest returns the content digest of the last upload. ok is false until
// the entry has been uploaded once.
func (e *Entry) Digest() (digest uint64, ok bool) { return e.digest, e.hasDigest }

// LastValidated returns the epoch in which the entry was last confirmed
// coherent, or 0 if it never was.
func (e *Entry) LastValidated() Epoch { return e.lastValidated }

// ExternalRefs returns the number of outstanding DataBuffer views.
func (e *Entry) ExternalRefs() int { return e.externalRefs }

// String returns a human-readable description of the entry.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry[%s %s epoch=%d refs=%d]",
		e.Key(), e.transform, e.lastValidated, e.externalRefs)
}

// alignUp rounds n up to the copy alignment.
func alignUp(n uint64) uint64 {
	return (n + copyAlignment - 1) &^ (copyAlignment - 1)
}
