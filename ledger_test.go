package memcache

import (
	"errors"
	"math"
	"testing"
)

func ledgerEntries(n int) []*Entry {
	out := make([]*Entry, n)
	for i := range out {
		out[i] = &Entry{address: PhysAddr(i * 0x100), size: 0x80}
	}
	return out
}

func TestLedgerFIFO(t *testing.T) {
	var l invalidationLedger
	entries := ledgerEntries(3)

	var recs []*pendingInvalidation
	for _, e := range entries {
		recs = append(recs, l.push(e, nil))
	}
	if l.len() != 3 {
		t.Fatalf("len = %d, want 3", l.len())
	}

	for i, rec := range recs {
		if err := l.resolve(rec); err != nil {
			t.Fatalf("resolve #%d failed: %v", i, err)
		}
		if l.contains(entries[i]) {
			t.Errorf("entry %d still in ledger after resolve", i)
		}
		if l.len() != 2-i {
			t.Errorf("len after resolving %d = %d, want %d", i, l.len(), 2-i)
		}
	}
}

func TestLedgerOutOfOrderIsViolation(t *testing.T) {
	var l invalidationLedger
	entries := ledgerEntries(2)
	a := l.push(entries[0], nil)
	b := l.push(entries[1], nil)

	if err := l.resolve(b); !errors.Is(err, ErrLedgerViolation) {
		t.Fatalf("out-of-order resolve = %v, want ErrLedgerViolation", err)
	}
	if l.len() != 2 {
		t.Fatalf("out-of-order resolve removed a record, len = %d", l.len())
	}
	if err := l.resolve(a); err != nil {
		t.Fatalf("resolve(a) failed: %v", err)
	}
	if err := l.resolve(b); err != nil {
		t.Fatalf("resolve(b) failed: %v", err)
	}
	if err := l.resolve(b); !errors.Is(err, ErrLedgerViolation) {
		t.Errorf("double resolve = %v, want ErrLedgerViolation", err)
	}
}

func TestLedgerDropAndOverlaps(t *testing.T) {
	var l invalidationLedger
	entries := ledgerEntries(3)
	a := l.push(entries[0], nil)
	b := l.push(entries[1], nil)
	l.push(entries[2], nil)

	l.drop(b)
	if l.contains(entries[1]) {
		t.Error("dropped record still present")
	}
	if err := l.resolve(a); err != nil {
		t.Errorf("resolve after drop failed: %v", err)
	}

	tests := []struct {
		addr PhysAddr
		size uint32
		want bool
	}{
		{0x200, 1, true},
		{0x27F, 1, true},
		{0x280, 0x80, false},
		{0x100, 0x80, false},
		{0x1F0, 0x20, true},
	}
	for _, tt := range tests {
		if got := l.overlaps(tt.addr, tt.size); got != tt.want {
			t.Errorf("overlaps(%#x, %d) = %v, want %v", tt.addr, tt.size, got, tt.want)
		}
	}
}

func TestDriverDownloadsResolveInIssueOrder(t *testing.T) {
	h := newHarness(t, 4096)
	h.begin()

	var entries []*Entry
	for i := range 3 {
		e := h.get(PhysAddr(i*0x100), 0x40, Identity())
		if err := h.driver.Invalidate(e); err != nil {
			t.Fatalf("Invalidate failed: %v", err)
		}
		entries = append(entries, e)
	}
	h.submit()

	tasks := h.driver.retire.ready(math.MaxUint64)
	var writebacks []*writebackTask
	for _, task := range tasks {
		if wb, ok := task.(*writebackTask); ok {
			writebacks = append(writebacks, wb)
		}
	}
	if len(writebacks) != 3 {
		t.Fatalf("writeback tasks = %d, want 3", len(writebacks))
	}
	for i, wb := range writebacks {
		if wb.rec.entry != entries[i] {
			t.Fatalf("writeback %d is for %s, want %s", i, wb.rec.entry.Key(), entries[i].Key())
		}
	}

	// Completing C before A is flagged and leaves the ledger intact.
	if err := writebacks[2].retire(); !errors.Is(err, ErrLedgerViolation) {
		t.Fatalf("out-of-order writeback = %v, want ErrLedgerViolation", err)
	}
	if h.driver.PendingInvalidations() != 3 {
		t.Fatalf("PendingInvalidations = %d, want 3", h.driver.PendingInvalidations())
	}

	for i := range 2 {
		if err := writebacks[i].retire(); err != nil {
			t.Fatalf("writeback %d failed: %v", i, err)
		}
		if h.driver.ledger.contains(entries[i]) {
			t.Errorf("entry %d still pending after its writeback", i)
		}
	}
	if h.driver.PendingInvalidations() != 1 {
		t.Errorf("PendingInvalidations = %d, want 1", h.driver.PendingInvalidations())
	}
}

func TestLedgerViolationAborts(t *testing.T) {
	var got error
	h := newHarness(t, 1024,
		WithAbortOnFatal(true),
		WithAbortFunc(func(err error) { got = err }),
	)

	var l invalidationLedger
	rec := &pendingInvalidation{entry: &Entry{}, seq: 42}
	err := h.driver.fatal(l.resolve(rec))
	if !errors.Is(err, ErrLedgerViolation) {
		t.Fatalf("fatal returned %v", err)
	}
	if !errors.Is(got, ErrLedgerViolation) {
		t.Errorf("abort received %v, want ErrLedgerViolation", got)
	}

	got = nil
	if err := h.driver.fatal(ErrZeroSize); !errors.Is(err, ErrZeroSize) || got != nil {
		t.Errorf("non-fatal error escalated: err=%v abort=%v", err, got)
	}
}
