package memcache

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// store is the registry of cache entries, one per (address, size) key.
// It owns every entry and its GPU buffer. It has no lock: only the
// recording goroutine touches it.
type store struct {
	entries       map[Key]*Entry
	residentBytes uint64
}

func newStore() *store {
	return &store{entries: make(map[Key]*Entry)}
}

// lookup returns the entry registered under key.
func (s *store) lookup(key Key) (*Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// create allocates the GPU buffer for a new entry and registers it.
// The key must not be registered yet.
func (s *store) create(device hal.Device, label string, addr PhysAddr, size uint32, t Transform) (*Entry, error) {
	key := MakeKey(addr, size)
	if _, exists := s.entries[key]; exists {
		return nil, fmt.Errorf("memcache: entry %s already registered", key)
	}

	bufferSize := alignUp(uint64(size))
	buffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("%s_%s", label, key),
		Size:  bufferSize,
		Usage: entryUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("memcache: create buffer for %s: %w", key, err)
	}

	e := &Entry{
		address:    addr,
		size:       size,
		transform:  t,
		buffer:     buffer,
		bufferSize: bufferSize,
	}
	s.entries[key] = e
	s.residentBytes += bufferSize
	return e, nil
}

// len returns the number of registered entries.
func (s *store) len() int {
	return len(s.entries)
}

// teardown destroys every entry buffer and empties the registry.
// It returns the number of entries released.
func (s *store) teardown(device hal.Device) int {
	n := len(s.entries)
	for key, e := range s.entries {
		if e.externalRefs > 0 {
			Logger().Warn("memcache: releasing entry with live views",
				"key", key, "refs", e.externalRefs)
		}
		device.DestroyBuffer(e.buffer)
		e.buffer = nil
		delete(s.entries, key)
	}
	s.residentBytes = 0
	return n
}
