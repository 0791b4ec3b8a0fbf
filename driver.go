package memcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/memcache/internal/staging"
)

// waitPollInterval is how often Wait polls the queue for completion.
const waitPollInterval = 200 * time.Microsecond

// Driver owns the cache registry of one rendering device.
//
// GetMemCache, GetDataBuffer, Invalidate, BeginSubmission, Submit, Stats,
// Len and Close must be called from a single recording goroutine. Poll,
// Wait, Epoch, IsPending and PendingInvalidations may be called from any
// goroutine.
type Driver struct {
	opts options

	device  hal.Device
	queue   hal.Queue
	encoder hal.CommandEncoder
	mem     Memory

	staging *staging.Pool
	scratch *scratchPool
	store   *store
	ledger  *invalidationLedger
	retire  *retireQueue

	epoch    epochCounter
	counters counters

	// pollMu serializes retire task execution.
	pollMu sync.Mutex

	recording bool
	closed    bool
}

// New creates a driver recording cache transfers on device and submitting
// them to queue. mem is the emulated memory the cache mirrors.
func New(device hal.Device, queue hal.Queue, mem Memory, opts ...Option) (*Driver, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if mem == nil {
		return nil, ErrNilMemory
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := staging.NewPool(device, staging.Config{
		Label:        o.label + "_staging",
		MaxIdleBytes: o.stagingIdle,
	})
	if err != nil {
		return nil, fmt.Errorf("memcache: %w", err)
	}
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: o.label + "_transfers",
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("memcache: create command encoder: %w", err)
	}

	d := &Driver{
		opts:    o,
		device:  device,
		queue:   queue,
		encoder: encoder,
		mem:     mem,
		staging: pool,
		scratch: newScratchPool(o.scratchBuffers),
		store:   newStore(),
		ledger:  &invalidationLedger{},
		retire:  &retireQueue{},
	}
	Logger().Info("memcache: driver opened",
		"label", o.label, "mismatch", o.mismatch, "abort_on_fatal", o.abortOnFatal)
	return d, nil
}

// NewFromProvider creates a driver on the device shared by a host
// application. The provider must expose its HAL device and queue.
func NewFromProvider(provider gpucontext.DeviceProvider, mem Memory, opts ...Option) (*Driver, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("memcache: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("memcache: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("memcache: provider HalQueue is not hal.Queue")
	}
	return New(device, queue, mem, opts...)
}

// BeginSubmission starts the next submission: it advances the usage epoch
// and opens the command encoder that transfers are recorded into.
func (d *Driver) BeginSubmission() error {
	if d.closed {
		return ErrDriverClosed
	}
	if d.recording {
		return ErrSubmissionActive
	}
	epoch := d.epoch.advance()
	if err := d.encoder.BeginEncoding(fmt.Sprintf("%s_epoch_%d", d.opts.label, epoch)); err != nil {
		return fmt.Errorf("memcache: begin encoding: %w", err)
	}
	d.recording = true
	return nil
}

// Submit ends the active submission and hands it to the queue. It returns
// the queue's submission index. Work deferred until the submission
// completes runs from Poll or Wait.
func (d *Driver) Submit() (uint64, error) {
	if d.closed {
		return 0, ErrDriverClosed
	}
	if !d.recording {
		return 0, ErrNoActiveSubmission
	}
	d.recording = false

	cmd, err := d.encoder.EndEncoding()
	if err != nil {
		d.abandonOpen()
		return 0, fmt.Errorf("memcache: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		d.abandonOpen()
		return 0, fmt.Errorf("memcache: submit: %w", err)
	}
	d.retire.add(&freeCommandBufferTask{device: d.device, cmd: cmd})
	d.retire.seal(index)
	return index, nil
}

// abandonOpen releases the resources of tasks whose submission was never
// executed. Their downloads never reach emulated memory.
func (d *Driver) abandonOpen() {
	tasks := d.retire.takeOpen()
	for _, t := range tasks {
		t.abandon()
	}
	if len(tasks) > 0 {
		Logger().Warn("memcache: abandoned transfers of failed submission", "tasks", len(tasks))
	}
}

// Poll runs, in submission order, the deferred work of every submission
// the queue reports as completed. A failing task does not stop the ones
// after it; their errors are joined.
func (d *Driver) Poll() error {
	if err := d.retireCompleted(); err != nil {
		return d.fatal(err)
	}
	return nil
}

// retireCompleted runs the ready retire tasks and joins their errors
// without escalating them.
func (d *Driver) retireCompleted() error {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()

	tasks := d.retire.ready(d.queue.PollCompleted())
	var errs []error
	for _, t := range tasks {
		if err := t.retire(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait polls until every submitted transfer has been retired or ctx is done.
// Transfers recorded into a submission that has not been submitted yet are
// not waited for.
func (d *Driver) Wait(ctx context.Context) error {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		if err := d.Poll(); err != nil {
			return err
		}
		if d.retire.pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetMemCache returns the entry mirroring [addr, addr+size), creating it on
// first use, and makes it coherent with emulated memory for the current
// epoch. The upload, if any, is recorded into the active submission.
//
// A cached range requested with a different transform is handled by the
// driver's MismatchPolicy.
func (d *Driver) GetMemCache(addr PhysAddr, size uint32, t Transform) (*Entry, error) {
	if d.closed {
		return nil, ErrDriverClosed
	}
	if size == 0 {
		return nil, ErrZeroSize
	}
	if !d.recording {
		return nil, ErrNoActiveSubmission
	}

	key := MakeKey(addr, size)
	if err := t.check(size); err != nil {
		return nil, d.fatal(fmt.Errorf("request %s: %w", key, err))
	}
	e, ok := d.store.lookup(key)
	force := false
	if !ok {
		if _, err := d.mem.Span(addr, size); err != nil {
			return nil, err
		}
		created, err := d.store.create(d.device, d.opts.label, addr, size, t)
		if err != nil {
			return nil, err
		}
		created.owner = d
		e = created
		Logger().Debug("memcache: entry created",
			"key", key, "transform", t, "entries", d.store.len())
	} else if !e.transform.Equal(t) {
		migrated, err := d.reconcile(e, t)
		if err != nil {
			return nil, err
		}
		force = migrated
	}

	if err := d.refresh(e, force); err != nil {
		return nil, err
	}
	return e, nil
}

// reconcile applies the mismatch policy to a cache hit requested with
// transform t. It reports whether the entry was migrated to t.
func (d *Driver) reconcile(e *Entry, t Transform) (bool, error) {
	switch d.opts.mismatch {
	case MismatchReject:
		return false, fmt.Errorf("%w: %s cached as %s, requested as %s",
			ErrTransformMismatch, e.Key(), e.transform, t)
	case MismatchMigrate:
		if d.ledger.contains(e) {
			return false, fmt.Errorf("%w: %s has a download in flight",
				ErrTransformMismatch, e.Key())
		}
		Logger().Debug("memcache: transform migrated",
			"key", e.Key(), "from", e.transform, "to", t)
		e.transform = t
		return true, nil
	default:
		Logger().Warn("memcache: transform mismatch, keeping cached transform",
			"key", e.Key(), "cached", e.transform, "requested", t)
		return false, nil
	}
}

// IsPending reports whether a download overlapping [addr, addr+size) is in
// flight, meaning emulated memory in that range is about to be overwritten.
func (d *Driver) IsPending(addr PhysAddr, size uint32) bool {
	return d.ledger.overlaps(addr, size)
}

// PendingInvalidations returns the number of downloads in flight.
func (d *Driver) PendingInvalidations() int {
	return d.ledger.len()
}

// Epoch returns the current usage epoch.
func (d *Driver) Epoch() Epoch {
	return d.epoch.load()
}

// Len returns the number of cache entries.
func (d *Driver) Len() int {
	return d.store.len()
}

// Stats returns current cache statistics.
func (d *Driver) Stats() Stats {
	st := d.staging.Stats()
	return Stats{
		Entries:              d.store.len(),
		ResidentBytes:        d.store.residentBytes,
		Epoch:                d.epoch.load(),
		Hashes:               d.counters.hashes.Load(),
		EpochSkips:           d.counters.epochSkips.Load(),
		DigestSkips:          d.counters.digestSkips.Load(),
		Uploads:              d.counters.uploads.Load(),
		UploadedBytes:        d.counters.uploadedBytes.Load(),
		Downloads:            d.counters.downloads.Load(),
		Writebacks:           d.counters.writebacks.Load(),
		PendingInvalidations: d.ledger.len(),
		StagingLiveBytes:     st.LiveBytes,
		StagingIdleBytes:     st.IdleBytes,
	}
}

// Close waits for the device to finish, retires all submitted work and
// destroys every entry buffer and staging buffer. An unsubmitted
// submission is discarded. Fatal retire errors are escalated only after
// everything is released. Close is idempotent.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}

	var errs []error
	if d.recording {
		d.encoder.DiscardEncoding()
		d.abandonOpen()
		d.recording = false
	}
	if err := d.device.WaitIdle(); err != nil {
		errs = append(errs, fmt.Errorf("memcache: wait idle: %w", err))
	}
	if err := d.retireCompleted(); err != nil {
		errs = append(errs, err)
	}
	for _, t := range d.retire.takeSealed() {
		t.abandon()
	}

	released := d.store.teardown(d.device)
	d.staging.Close()
	d.encoder.Destroy()
	d.closed = true

	Logger().Info("memcache: driver closed", "entries", released)
	if err := errors.Join(errs...); err != nil {
		return d.fatal(err)
	}
	return nil
}

// checkEntry validates an entry passed in by a caller.
func (d *Driver) checkEntry(e *Entry) error {
	if d.closed {
		return ErrDriverClosed
	}
	if e == nil {
		return ErrNilEntry
	}
	if e.owner != d {
		return ErrForeignEntry
	}
	return nil
}

// fatal escalates invariant violations to the abort function when the
// driver was created WithAbortOnFatal. Other errors are returned as is.
func (d *Driver) fatal(err error) error {
	if !errors.Is(err, ErrUnsupportedTransform) && !errors.Is(err, ErrLedgerViolation) {
		return err
	}
	Logger().Warn("memcache: fatal error", "err", err, "abort", d.opts.abortOnFatal)
	if d.opts.abortOnFatal {
		d.opts.abort(err)
	}
	return err
}
