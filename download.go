package memcache

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/memcache/internal/staging"
	"github.com/gogpu/memcache/tiling"
)

// Invalidate reads the entry's GPU buffer back into emulated memory.
//
// The copy into a staging buffer is recorded into the active submission
// and the entry is registered as a pending invalidation. The writeback
// into memory, re-tiled if the entry is tiled, runs from Poll or Wait once
// the submission has completed. Until then IsPending reports the range.
func (d *Driver) Invalidate(e *Entry) error {
	if err := d.checkEntry(e); err != nil {
		return err
	}
	if !d.recording {
		return ErrNoActiveSubmission
	}
	if err := e.transform.check(e.size); err != nil {
		return d.fatal(fmt.Errorf("download %s: %w", e.Key(), err))
	}

	buf, err := d.staging.Acquire(uint64(e.size), staging.Readback)
	if err != nil {
		return fmt.Errorf("memcache: download %s: %w", e.Key(), err)
	}
	d.encoder.CopyBufferToBuffer(e.buffer, buf.Raw(), []hal.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      e.bufferSize,
	}})

	rec := d.ledger.push(e, buf)
	d.retire.add(&writebackTask{
		rec:       rec,
		address:   e.address,
		size:      e.size,
		transform: e.transform,
		mem:       d.mem,
		pool:      d.staging,
		scratch:   d.scratch,
		ledger:    d.ledger,
		converter: d.opts.converter,
		counters:  &d.counters,
	})

	d.counters.downloads.Add(1)
	Logger().Debug("memcache: download",
		"key", e.Key(), "transform", e.transform.Mode, "seq", rec.seq)
	return nil
}

// writebackTask copies a completed download into emulated memory.
// It carries everything it touches, so it never reads driver state.
type writebackTask struct {
	rec       *pendingInvalidation
	address   PhysAddr
	size      uint32
	transform Transform

	mem       Memory
	pool      *staging.Pool
	scratch   *scratchPool
	ledger    *invalidationLedger
	converter tiling.Converter
	counters  *counters
}

func (t *writebackTask) retire() error {
	key := MakeKey(t.address, t.size)
	buf := t.rec.staging

	var errs []error
	data, err := t.pool.Map(buf, false)
	if err != nil {
		errs = append(errs, fmt.Errorf("memcache: writeback %s: %w", key, err))
	} else {
		if err := t.writeback(data); err != nil {
			errs = append(errs, fmt.Errorf("memcache: writeback %s: %w", key, err))
		}
		if err := t.pool.Unmap(buf); err != nil {
			errs = append(errs, fmt.Errorf("memcache: writeback %s: %w", key, err))
		}
	}
	if err := t.pool.Release(buf); err != nil {
		errs = append(errs, fmt.Errorf("memcache: writeback %s: %w", key, err))
	}
	if err := t.ledger.resolve(t.rec); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		t.counters.writebacks.Add(1)
		Logger().Debug("memcache: writeback", "key", key, "seq", t.rec.seq)
	}
	return errors.Join(errs...)
}

func (t *writebackTask) writeback(data []byte) error {
	dst, err := t.mem.Span(t.address, t.size)
	if err != nil {
		return err
	}
	switch t.transform.Mode {
	case TransformIdentity:
		copy(dst, data)
		return nil
	case TransformTiled:
		scratch := t.scratch.get(len(data))
		defer t.scratch.put(scratch)
		copy(scratch, data)
		return t.converter.ToTiled(dst, scratch, t.transform.Tiled)
	default:
		return fmt.Errorf("%w: mode %s", ErrUnsupportedTransform, t.transform.Mode)
	}
}

func (t *writebackTask) abandon() {
	_ = t.pool.Release(t.rec.staging)
	t.ledger.drop(t.rec)
}
