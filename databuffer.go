package memcache

import "github.com/gogpu/wgpu/hal"

// DataBuffer is a plain data-buffer view of a cache entry.
//
// Views share the entry's GPU buffer instead of duplicating it; each view
// holds one external reference on the entry until Release.
type DataBuffer struct {
	entry    *Entry
	released bool
}

// GetDataBuffer returns a data-buffer view of [addr, addr+size). The range
// is cached with the identity transform and made coherent like GetMemCache.
func (d *Driver) GetDataBuffer(addr PhysAddr, size uint32) (*DataBuffer, error) {
	e, err := d.GetMemCache(addr, size, Identity())
	if err != nil {
		return nil, err
	}
	e.externalRefs++
	return &DataBuffer{entry: e}, nil
}

// Entry returns the cache entry behind the view.
func (b *DataBuffer) Entry() *Entry { return b.entry }

// Buffer returns the shared GPU buffer.
func (b *DataBuffer) Buffer() hal.Buffer { return b.entry.buffer }

// Size returns the number of mirrored bytes.
func (b *DataBuffer) Size() uint32 { return b.entry.size }

// Release drops the view's reference on the entry. Calling Release more
// than once has no further effect.
func (b *DataBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.entry.externalRefs--
}
