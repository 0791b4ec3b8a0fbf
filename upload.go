package memcache

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/memcache/internal/staging"
)

// upload records a copy of span, converted to linear layout if the entry
// is tiled, into the entry's GPU buffer.
func (d *Driver) upload(e *Entry, span []byte) error {
	if err := e.transform.check(e.size); err != nil {
		return d.fatal(fmt.Errorf("upload %s: %w", e.Key(), err))
	}

	data := span
	if e.transform.Mode == TransformTiled {
		scratch := d.scratch.get(len(span))
		defer d.scratch.put(scratch)
		if err := d.opts.converter.ToLinear(scratch, span, e.transform.Tiled); err != nil {
			return fmt.Errorf("memcache: untile %s: %w", e.Key(), err)
		}
		data = scratch
	}

	buf, err := d.staging.Acquire(uint64(e.size), staging.Upload)
	if err != nil {
		return fmt.Errorf("memcache: upload %s: %w", e.Key(), err)
	}
	mapped, err := d.staging.Map(buf, true)
	if err != nil {
		_ = d.staging.Release(buf)
		return fmt.Errorf("memcache: upload %s: %w", e.Key(), err)
	}
	copy(mapped, data)
	if err := d.staging.Unmap(buf); err != nil {
		_ = d.staging.Release(buf)
		return fmt.Errorf("memcache: upload %s: %w", e.Key(), err)
	}

	d.encoder.CopyBufferToBuffer(buf.Raw(), e.buffer, []hal.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      e.bufferSize,
	}})
	d.retire.add(&releaseStagingTask{pool: d.staging, buf: buf})

	d.counters.uploads.Add(1)
	d.counters.uploadedBytes.Add(uint64(e.size))
	Logger().Debug("memcache: upload",
		"key", e.Key(), "transform", e.transform.Mode, "epoch", d.epoch.load())
	return nil
}
