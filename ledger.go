package memcache

import (
	"fmt"
	"sync"

	"github.com/gogpu/memcache/internal/staging"
)

// pendingInvalidation is a download in flight: the entry being read back
// and the staging buffer the GPU copies into.
type pendingInvalidation struct {
	entry   *Entry
	staging *staging.Buffer
	seq     uint64
}

// invalidationLedger records in-flight downloads in issue order.
//
// Records are appended on the recording goroutine and resolved by
// writeback tasks, which may run on another goroutine.
type invalidationLedger struct {
	mu      sync.Mutex
	records []*pendingInvalidation
	nextSeq uint64
}

// push appends a record for a download that was just recorded.
func (l *invalidationLedger) push(e *Entry, buf *staging.Buffer) *pendingInvalidation {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	rec := &pendingInvalidation{entry: e, staging: buf, seq: l.nextSeq}
	l.records = append(l.records, rec)
	return rec
}

// resolve removes rec, which must be the oldest record in flight.
// A record that is missing or not at the front is a ledger violation;
// an out-of-order record is left in place.
func (l *invalidationLedger) resolve(rec *pendingInvalidation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexLocked(rec)
	if idx < 0 {
		return fmt.Errorf("%w: download #%d is not in flight", ErrLedgerViolation, rec.seq)
	}
	if idx != 0 {
		return fmt.Errorf("%w: download #%d (%s) completed before #%d (%s)",
			ErrLedgerViolation, rec.seq, rec.entry.Key(), l.records[0].seq, l.records[0].entry.Key())
	}
	l.records[0] = nil
	l.records = l.records[1:]
	return nil
}

// drop removes rec wherever it is. It is used for downloads whose
// submission never reached the GPU.
func (l *invalidationLedger) drop(rec *pendingInvalidation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx := l.indexLocked(rec); idx >= 0 {
		l.records = append(l.records[:idx], l.records[idx+1:]...)
	}
}

// contains reports whether a download of e is in flight.
func (l *invalidationLedger) contains(e *Entry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.records {
		if rec.entry == e {
			return true
		}
	}
	return false
}

// overlaps reports whether an in-flight download covers any byte of
// [addr, addr+size).
func (l *invalidationLedger) overlaps(addr PhysAddr, size uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	start, end := uint64(addr), uint64(addr)+uint64(size)
	for _, rec := range l.records {
		recStart := uint64(rec.entry.address)
		recEnd := recStart + uint64(rec.entry.size)
		if start < recEnd && recStart < end {
			return true
		}
	}
	return false
}

// len returns the number of downloads in flight.
func (l *invalidationLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *invalidationLedger) indexLocked(rec *pendingInvalidation) int {
	for i, r := range l.records {
		if r == rec {
			return i
		}
	}
	return -1
}
