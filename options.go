package memcache

import (
	"fmt"

	"github.com/gogpu/memcache/internal/contenthash"
	"github.com/gogpu/memcache/internal/staging"
	"github.com/gogpu/memcache/tiling"
)

// Hasher computes a change-detection digest over a memory region.
// Equal inputs must produce equal digests.
type Hasher func(data []byte) uint64

// MismatchPolicy decides what GetMemCache does when a cached range is
// requested with a transform other than the one it was created with.
type MismatchPolicy int

const (
	// MismatchKeep returns the existing entry with its original transform
	// and logs a warning.
	MismatchKeep MismatchPolicy = iota

	// MismatchReject fails the request with ErrTransformMismatch.
	MismatchReject

	// MismatchMigrate switches the entry to the requested transform and
	// re-uploads it. Entries with a download in flight are rejected with
	// ErrTransformMismatch, since their GPU contents are still being read
	// back in the old layout.
	MismatchMigrate
)

// String returns the string representation of MismatchPolicy.
func (p MismatchPolicy) String() string {
	switch p {
	case MismatchKeep:
		return "Keep"
	case MismatchReject:
		return "Reject"
	case MismatchMigrate:
		return "Migrate"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// Option configures a Driver during creation.
//
// Example:
//
//	d, err := memcache.New(device, queue, mem,
//	    memcache.WithMismatchPolicy(memcache.MismatchReject),
//	    memcache.WithAbortOnFatal(true),
//	)
type Option func(*options)

// options holds optional configuration for Driver creation.
type options struct {
	label          string
	hasher         Hasher
	mismatch       MismatchPolicy
	abortOnFatal   bool
	abort          func(error)
	scratchBuffers int
	stagingIdle    uint64
	converter      tiling.Converter
}

// defaultOptions returns the default driver options.
func defaultOptions() options {
	return options{
		label:          "memcache",
		hasher:         contenthash.Sum,
		mismatch:       MismatchKeep,
		abort:          func(err error) { panic(err) },
		scratchBuffers: 2,
		stagingIdle:    staging.DefaultMaxIdleBytes,
		converter:      tiling.Converter{MinParallelBytes: tiling.DefaultMinParallelBytes},
	}
}

// WithLabel sets the debug label prefix of GPU resources created by the driver.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithHasher replaces the content hash used for change detection.
// The default is xxHash64.
func WithHasher(h Hasher) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithMismatchPolicy sets how transform mismatches on cache hits are handled.
// The default is MismatchKeep.
func WithMismatchPolicy(p MismatchPolicy) Option {
	return func(o *options) {
		o.mismatch = p
	}
}

// WithAbortOnFatal escalates fatal errors (ErrUnsupportedTransform,
// ErrLedgerViolation) to the abort function instead of returning them.
func WithAbortOnFatal(enabled bool) Option {
	return func(o *options) {
		o.abortOnFatal = enabled
	}
}

// WithAbortFunc replaces the function called for fatal errors when
// WithAbortOnFatal is enabled. The default panics with the error.
func WithAbortFunc(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.abort = fn
		}
	}
}

// WithScratchBuffers sets how many transform scratch buffers are retained
// for reuse between conversions.
func WithScratchBuffers(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.scratchBuffers = n
		}
	}
}

// WithStagingLimit bounds the idle staging memory kept for reuse.
func WithStagingLimit(bytes uint64) Option {
	return func(o *options) {
		if bytes > 0 {
			o.stagingIdle = bytes
		}
	}
}

// WithParallelTiling sets the surface size from which tiling conversions are
// split across goroutines. Zero converts on the calling goroutine only.
func WithParallelTiling(minBytes uint64) Option {
	return func(o *options) {
		o.converter.MinParallelBytes = minBytes
	}
}
