package staging

import (
	"fmt"
	"math/bits"
	"sync"
	"unsafe"

	"github.com/gogpu/wgpu/hal"
)

// Pool defaults.
const (
	// DefaultMaxIdleBytes is the default amount of free staging memory
	// retained for reuse (64 MB).
	DefaultMaxIdleBytes = 64 << 20

	// minSizeClass is the smallest allocation (256 bytes).
	minSizeClass = 256
)

// Stats contains staging pool statistics.
type Stats struct {
	// LiveBytes is the memory of all buffers the pool currently owns.
	LiveBytes uint64

	// IdleBytes is the memory of buffers waiting in the free lists.
	IdleBytes uint64

	// Created is the total number of buffers allocated on the device.
	Created uint64

	// Reused is the number of acquisitions served from a free list.
	Reused uint64

	// Destroyed is the number of buffers released back to the device.
	Destroyed uint64

	// Outstanding is the number of buffers currently checked out.
	Outstanding int
}

// String returns a human-readable string of pool stats.
func (s Stats) String() string {
	return fmt.Sprintf("Staging[%d KB live, %d KB idle, %d out, %d created, %d reused, %d destroyed]",
		s.LiveBytes/1024, s.IdleBytes/1024, s.Outstanding, s.Created, s.Reused, s.Destroyed)
}

// Config holds configuration for creating a Pool.
type Config struct {
	// Label prefixes the debug labels of created buffers.
	Label string

	// MaxIdleBytes bounds the free memory kept for reuse.
	// Defaults to DefaultMaxIdleBytes if zero.
	MaxIdleBytes uint64
}

// classKey identifies a free list.
type classKey struct {
	direction Direction
	capacity  uint64
}

// Pool hands out pooled staging buffers of power-of-two size classes.
//
// Pool is safe for concurrent use: uploads acquire buffers on the recording
// goroutine while readback buffers are released from retire callbacks.
type Pool struct {
	mu sync.Mutex

	device hal.Device
	label  string

	free         map[classKey][]*Buffer
	live         map[*Buffer]struct{}
	maxIdleBytes uint64

	liveBytes   uint64
	idleBytes   uint64
	created     uint64
	reused      uint64
	destroyed   uint64
	outstanding int

	closed bool
}

// NewPool creates a staging pool allocating from device.
func NewPool(device hal.Device, config Config) (*Pool, error) {
	if device == nil {
		return nil, fmt.Errorf("staging: device is nil")
	}
	maxIdle := config.MaxIdleBytes
	if maxIdle == 0 {
		maxIdle = DefaultMaxIdleBytes
	}
	label := config.Label
	if label == "" {
		label = "staging"
	}
	return &Pool{
		device:       device,
		label:        label,
		free:         make(map[classKey][]*Buffer),
		live:         make(map[*Buffer]struct{}),
		maxIdleBytes: maxIdle,
	}, nil
}

// sizeClass rounds size up to the allocation class.
func sizeClass(size uint64) uint64 {
	if size <= minSizeClass {
		return minSizeClass
	}
	return 1 << bits.Len64(size-1)
}

// Acquire checks out a staging buffer of at least size bytes.
// The buffer is unmapped; call Map to access its contents.
func (p *Pool) Acquire(size uint64, direction Direction) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	key := classKey{direction: direction, capacity: sizeClass(size)}
	if list := p.free[key]; len(list) > 0 {
		buf := list[len(list)-1]
		list[len(list)-1] = nil
		p.free[key] = list[:len(list)-1]
		p.idleBytes -= buf.capacity
		p.reused++
		p.outstanding++
		buf.state = StateAcquired
		buf.length = size
		return buf, nil
	}

	raw, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("%s_%s_%d", p.label, direction, key.capacity),
		Size:  key.capacity,
		Usage: direction.usage(),
	})
	if err != nil {
		return nil, fmt.Errorf("staging: create %d byte buffer: %w", key.capacity, err)
	}

	buf := &Buffer{
		pool:      p,
		raw:       raw,
		direction: direction,
		capacity:  key.capacity,
		length:    size,
		state:     StateAcquired,
	}
	p.live[buf] = struct{}{}
	p.liveBytes += buf.capacity
	p.created++
	p.outstanding++

	slogger().Debug("staging: buffer created",
		"direction", direction, "capacity", key.capacity, "live_bytes", p.liveBytes)
	return buf, nil
}

// Map makes the buffer host-visible and returns its first Len bytes.
// Upload buffers must be mapped for writing, readback buffers for reading.
func (p *Pool) Map(buf *Buffer, forWrite bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOwnedLocked(buf); err != nil {
		return nil, err
	}
	switch buf.state {
	case StateFree:
		return nil, ErrNotAcquired
	case StateMapped:
		return nil, ErrAlreadyMapped
	}
	if forWrite != (buf.direction == Upload) {
		return nil, fmt.Errorf("%w: %s buffer mapped for write=%v", ErrMapUsageMismatch, buf.direction, forWrite)
	}

	mapping, err := p.device.MapBuffer(buf.raw, 0, buf.capacity)
	if err != nil {
		return nil, fmt.Errorf("staging: map buffer: %w", err)
	}
	if mapping.Ptr == nil {
		return nil, fmt.Errorf("staging: map buffer: %w", hal.ErrInvalidMapRange)
	}

	buf.mapped = unsafe.Slice((*byte)(mapping.Ptr), buf.capacity) //nolint:gosec // mapping covers capacity bytes
	buf.state = StateMapped
	return buf.mapped[:buf.length], nil
}

// Unmap ends host access to the buffer and publishes CPU writes to the device.
// Slices returned by Map must not be used afterwards.
func (p *Pool) Unmap(buf *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOwnedLocked(buf); err != nil {
		return err
	}
	if buf.state != StateMapped {
		return ErrNotMapped
	}

	buf.mapped = nil
	buf.state = StateAcquired
	if err := p.device.UnmapBuffer(buf.raw); err != nil {
		return fmt.Errorf("staging: unmap buffer: %w", err)
	}
	return nil
}

// Release hands a checked-out, unmapped buffer back to the pool.
// The buffer is kept for reuse unless the idle budget is exhausted.
func (p *Pool) Release(buf *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOwnedLocked(buf); err != nil {
		return err
	}
	switch buf.state {
	case StateFree:
		return ErrNotAcquired
	case StateMapped:
		return ErrStillMapped
	}

	p.outstanding--
	buf.length = 0
	if p.idleBytes+buf.capacity > p.maxIdleBytes {
		p.destroyLocked(buf)
		return nil
	}

	buf.state = StateFree
	key := classKey{direction: buf.direction, capacity: buf.capacity}
	p.free[key] = append(p.free[key], buf)
	p.idleBytes += buf.capacity
	return nil
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		LiveBytes:   p.liveBytes,
		IdleBytes:   p.idleBytes,
		Created:     p.created,
		Reused:      p.reused,
		Destroyed:   p.destroyed,
		Outstanding: p.outstanding,
	}
}

// Close destroys every buffer the pool owns, including checked-out ones.
// The pool must not be used after Close. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.outstanding > 0 {
		slogger().Warn("staging: closing pool with outstanding buffers", "outstanding", p.outstanding)
	}
	for buf := range p.live {
		if buf.state == StateMapped {
			_ = p.device.UnmapBuffer(buf.raw)
			buf.mapped = nil
		}
		p.destroyLocked(buf)
	}
	p.free = nil
	p.idleBytes = 0
	p.outstanding = 0
	p.closed = true
}

func (p *Pool) checkOwnedLocked(buf *Buffer) error {
	if buf == nil {
		return ErrNilBuffer
	}
	if p.closed {
		return ErrPoolClosed
	}
	if buf.pool != p {
		return ErrForeignBuffer
	}
	if _, ok := p.live[buf]; !ok {
		return ErrForeignBuffer
	}
	return nil
}

// destroyLocked releases the device buffer. Caller must hold mu.
func (p *Pool) destroyLocked(buf *Buffer) {
	delete(p.live, buf)
	p.liveBytes -= buf.capacity
	p.destroyed++
	buf.state = StateFree
	p.device.DestroyBuffer(buf.raw)
	buf.raw = nil
}
