package memcache

import (
	"fmt"
	"sync/atomic"
)

// Stats contains cache statistics.
type Stats struct {
	// Entries is the number of registered entries.
	Entries int

	// ResidentBytes is the GPU memory held by entry buffers.
	ResidentBytes uint64

	// Epoch is the current usage epoch.
	Epoch Epoch

	// Hashes is the number of content digests computed.
	Hashes uint64

	// EpochSkips counts coherence checks answered by the epoch alone.
	EpochSkips uint64

	// DigestSkips counts coherence checks whose digest matched.
	DigestSkips uint64

	// Uploads is the number of uploads recorded.
	Uploads uint64

	// UploadedBytes is the total size of recorded uploads.
	UploadedBytes uint64

	// Downloads is the number of downloads recorded.
	Downloads uint64

	// Writebacks is the number of downloads written back to memory.
	Writebacks uint64

	// PendingInvalidations is the number of downloads in flight.
	PendingInvalidations int

	// StagingLiveBytes is the memory owned by the staging pool.
	StagingLiveBytes uint64

	// StagingIdleBytes is the staging memory waiting for reuse.
	StagingIdleBytes uint64
}

// String returns a human-readable string of cache stats.
func (s Stats) String() string {
	return fmt.Sprintf("MemCache[epoch %d, %d entries, %d KB resident, %d uploads (%d KB), %d/%d skips, %d downloads, %d pending, staging %d KB]",
		s.Epoch, s.Entries, s.ResidentBytes/1024, s.Uploads, s.UploadedBytes/1024,
		s.EpochSkips, s.DigestSkips, s.Downloads, s.PendingInvalidations, s.StagingLiveBytes/1024)
}

// counters are updated from the recording goroutine and from retire tasks.
type counters struct {
	hashes        atomic.Uint64
	epochSkips    atomic.Uint64
	digestSkips   atomic.Uint64
	uploads       atomic.Uint64
	uploadedBytes atomic.Uint64
	downloads     atomic.Uint64
	writebacks    atomic.Uint64
}
