// Package memcache keeps GPU buffers coherent with ranges of an emulated
// machine's memory.
//
// # Overview
//
// A renderer for an emulated GPU reads vertex, index and constant data
// straight out of emulated RAM. memcache mirrors each such range in a GPU
// buffer, uploads it only when its bytes changed, and reads GPU-written
// results back into emulated memory on demand.
//
// # Quick Start
//
//	import "github.com/gogpu/memcache"
//
//	mem := memcache.NewFlatMemory(0, 32<<20)
//	d, err := memcache.New(device, queue, mem)
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	d.BeginSubmission()
//	entry, err := d.GetMemCache(0x1000, 4096, memcache.Identity())
//	// ... bind entry.Buffer() in the renderer ...
//	d.Invalidate(entry)
//	d.Submit()
//	d.Wait(ctx)
//
// # Coherence
//
// Every BeginSubmission starts a new epoch. The first GetMemCache of an
// entry in an epoch hashes its range (xxHash64 by default) and records an
// upload if the digest differs from the last upload. Later requests in the
// same epoch return the entry without touching memory.
//
// # Transforms
//
// A Transform describes how bytes are laid out in emulated memory relative
// to the GPU buffer. Identity copies bytes unchanged. Tiled surfaces are
// untiled on upload and retiled on writeback using package tiling.
//
// # Downloads
//
// Invalidate records a copy of the GPU buffer into a staging buffer. The
// writeback into emulated memory runs from Poll or Wait once the queue
// reports the submission complete. Writebacks resolve in issue order; a
// completion that does not match the oldest download in flight is
// reported as ErrLedgerViolation.
//
// # Errors
//
// ErrUnsupportedTransform and ErrLedgerViolation indicate defects, not
// data conditions. They are returned by default; WithAbortOnFatal hands
// them to an abort function instead.
package memcache

// Version is the current version of the library.
const Version = "0.1.0"
