package memcache

import (
	"testing"

	"github.com/gogpu/memcache/internal/staging"
	"github.com/gogpu/memcache/tiling"
)

// TestDefaultOptions tests the configuration used when no option is given.
func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()

	if o.label != "memcache" {
		t.Errorf("label = %q, want memcache", o.label)
	}
	if o.hasher == nil {
		t.Fatal("hasher is nil")
	}
	if o.mismatch != MismatchKeep {
		t.Errorf("mismatch = %v, want Keep", o.mismatch)
	}
	if o.abortOnFatal {
		t.Error("abortOnFatal enabled by default")
	}
	if o.scratchBuffers != 2 {
		t.Errorf("scratchBuffers = %d, want 2", o.scratchBuffers)
	}
	if o.stagingIdle != staging.DefaultMaxIdleBytes {
		t.Errorf("stagingIdle = %d, want %d", o.stagingIdle, staging.DefaultMaxIdleBytes)
	}
	if o.converter.MinParallelBytes != tiling.DefaultMinParallelBytes {
		t.Errorf("MinParallelBytes = %d", o.converter.MinParallelBytes)
	}
}

// TestOptionsApply tests that each option changes only its own field.
func TestOptionsApply(t *testing.T) {
	var aborted bool
	hasher := func([]byte) uint64 { return 7 }

	o := defaultOptions()
	for _, opt := range []Option{
		WithLabel("gx2"),
		WithHasher(hasher),
		WithMismatchPolicy(MismatchMigrate),
		WithAbortOnFatal(true),
		WithAbortFunc(func(error) { aborted = true }),
		WithScratchBuffers(0),
		WithStagingLimit(1 << 10),
		WithParallelTiling(0),
	} {
		opt(&o)
	}

	if o.label != "gx2" {
		t.Errorf("label = %q", o.label)
	}
	if o.hasher(nil) != 7 {
		t.Error("WithHasher not applied")
	}
	if o.mismatch != MismatchMigrate || !o.abortOnFatal {
		t.Errorf("mismatch=%v abortOnFatal=%v", o.mismatch, o.abortOnFatal)
	}
	o.abort(nil)
	if !aborted {
		t.Error("WithAbortFunc not applied")
	}
	if o.scratchBuffers != 0 || o.stagingIdle != 1<<10 || o.converter.MinParallelBytes != 0 {
		t.Errorf("scratch=%d staging=%d parallel=%d", o.scratchBuffers, o.stagingIdle, o.converter.MinParallelBytes)
	}
}

// TestOptionsIgnoreZeroValues tests that empty arguments keep the defaults.
func TestOptionsIgnoreZeroValues(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithLabel(""),
		WithHasher(nil),
		WithAbortFunc(nil),
		WithScratchBuffers(-1),
		WithStagingLimit(0),
	} {
		opt(&o)
	}
	want := defaultOptions()

	if o.label != want.label || o.hasher == nil || o.abort == nil {
		t.Error("zero-valued option replaced a default")
	}
	if o.scratchBuffers != want.scratchBuffers || o.stagingIdle != want.stagingIdle {
		t.Errorf("scratch=%d staging=%d", o.scratchBuffers, o.stagingIdle)
	}
}
