package memcache

import "errors"

// Cache errors.
var (
	// ErrUnsupportedTransform is returned when an entry carries a transform
	// outside the closed set this driver converts. It indicates a programming
	// or configuration defect, never a data condition.
	ErrUnsupportedTransform = errors.New("memcache: unsupported transform")

	// ErrLedgerViolation is returned when a download completes for a record
	// that is missing from the ledger or is not the oldest one in flight.
	ErrLedgerViolation = errors.New("memcache: invalidation ledger violation")

	// ErrTransformMismatch is returned when a cached range is requested with a
	// transform different from the one it was created with and the mismatch
	// policy does not allow it.
	ErrTransformMismatch = errors.New("memcache: transform does not match cached entry")

	// ErrZeroSize is returned for empty ranges.
	ErrZeroSize = errors.New("memcache: size is zero")

	// ErrAddressOutOfRange is returned when a range leaves emulated memory.
	ErrAddressOutOfRange = errors.New("memcache: address range outside emulated memory")

	// ErrNoActiveSubmission is returned when device work must be recorded but
	// BeginSubmission has not been called.
	ErrNoActiveSubmission = errors.New("memcache: no active submission")

	// ErrSubmissionActive is returned by BeginSubmission when the previous
	// submission has not been submitted yet.
	ErrSubmissionActive = errors.New("memcache: submission already active")

	// ErrDriverClosed is returned when operating on a closed driver.
	ErrDriverClosed = errors.New("memcache: driver is closed")

	// ErrNilDevice is returned when the driver is created without a device or queue.
	ErrNilDevice = errors.New("memcache: device or queue is nil")

	// ErrNilMemory is returned when the driver is created without emulated memory.
	ErrNilMemory = errors.New("memcache: memory is nil")

	// ErrNilEntry is returned when a nil entry is passed to the driver.
	ErrNilEntry = errors.New("memcache: entry is nil")

	// ErrForeignEntry is returned for entries owned by another driver.
	ErrForeignEntry = errors.New("memcache: entry belongs to another driver")
)
