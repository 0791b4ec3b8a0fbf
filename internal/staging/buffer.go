// Package staging provides host-visible scratch buffers used as the
// intermediate hop between emulated memory and GPU-only cache buffers.
package staging

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Staging buffer errors.
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = errors.New("staging: pool is closed")

	// ErrInvalidSize is returned when a zero-sized buffer is requested.
	ErrInvalidSize = errors.New("staging: invalid buffer size")

	// ErrNilBuffer is returned when a nil buffer is passed to the pool.
	ErrNilBuffer = errors.New("staging: buffer is nil")

	// ErrForeignBuffer is returned for buffers that this pool did not create.
	ErrForeignBuffer = errors.New("staging: buffer does not belong to this pool")

	// ErrNotAcquired is returned when operating on a buffer that is back in the pool.
	ErrNotAcquired = errors.New("staging: buffer is not acquired")

	// ErrAlreadyMapped is returned when mapping a buffer that is already mapped.
	ErrAlreadyMapped = errors.New("staging: buffer is already mapped")

	// ErrNotMapped is returned when unmapping a buffer that is not mapped.
	ErrNotMapped = errors.New("staging: buffer is not mapped")

	// ErrStillMapped is returned when releasing a buffer that is still mapped.
	ErrStillMapped = errors.New("staging: buffer is still mapped")

	// ErrMapUsageMismatch is returned when the map mode does not match the buffer direction.
	ErrMapUsageMismatch = errors.New("staging: map mode does not match buffer direction")
)

// Direction is the transfer direction a staging buffer is created for.
type Direction int

const (
	// Upload buffers are written by the CPU and copied to the GPU.
	Upload Direction = iota
	// Readback buffers are written by the GPU and read by the CPU.
	Readback
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	switch d {
	case Upload:
		return "Upload"
	case Readback:
		return "Readback"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// usage returns the buffer usage flags for the direction.
func (d Direction) usage() gputypes.BufferUsage {
	if d == Upload {
		return gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc
	}
	return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
}

// State represents the lifecycle state of a staging buffer.
type State int

const (
	// StateFree means the buffer sits in the pool's free list.
	StateFree State = iota
	// StateAcquired means the buffer is checked out and unmapped.
	StateAcquired
	// StateMapped means the buffer is checked out and host-visible.
	StateMapped
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateFree:
		return "Free"
	case StateAcquired:
		return "Acquired"
	case StateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Buffer is a host-visible staging buffer owned by a Pool.
//
// A Buffer is checked out with Pool.Acquire, optionally mapped and unmapped
// any number of times, and handed back with Pool.Release. Its state is
// guarded by the owning pool.
type Buffer struct {
	pool      *Pool
	raw       hal.Buffer
	direction Direction

	// capacity is the allocated size (a power-of-two size class).
	capacity uint64

	// length is the size requested by the current holder.
	length uint64

	state  State
	mapped []byte
}

// Raw returns the underlying buffer handle for recording copies.
func (b *Buffer) Raw() hal.Buffer {
	return b.raw
}

// Len returns the size requested by the current holder.
func (b *Buffer) Len() uint64 {
	return b.length
}

// Capacity returns the allocated size of the buffer.
func (b *Buffer) Capacity() uint64 {
	return b.capacity
}

// Direction returns the transfer direction the buffer was created for.
func (b *Buffer) Direction() Direction {
	return b.direction
}
