package memcache

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"
)

// createSoftwareDevice creates a software device and queue for testing.
// Software buffers are backed by real memory and copies execute as they
// are recorded.
func createSoftwareDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := software.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("no software adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// gatedQueue reports completion only up to a submission index set by the
// test, so retire ordering can be observed.
type gatedQueue struct {
	hal.Queue
	completed atomic.Uint64
}

func (q *gatedQueue) PollCompleted() uint64 {
	return min(q.completed.Load(), q.Queue.PollCompleted())
}

type harness struct {
	t      *testing.T
	device hal.Device
	queue  hal.Queue
	mem    *FlatMemory
	driver *Driver
}

func newHarness(t *testing.T, memSize int, opts ...Option) *harness {
	t.Helper()
	device, queue := createSoftwareDevice(t)
	return newHarnessWithQueue(t, device, queue, memSize, opts...)
}

func newHarnessWithQueue(t *testing.T, device hal.Device, queue hal.Queue, memSize int, opts ...Option) *harness {
	t.Helper()
	mem := NewFlatMemory(0, memSize)
	d, err := New(device, queue, mem, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return &harness{t: t, device: device, queue: queue, mem: mem, driver: d}
}

func (h *harness) begin() {
	h.t.Helper()
	if err := h.driver.BeginSubmission(); err != nil {
		h.t.Fatalf("BeginSubmission failed: %v", err)
	}
}

func (h *harness) submit() uint64 {
	h.t.Helper()
	index, err := h.driver.Submit()
	if err != nil {
		h.t.Fatalf("Submit failed: %v", err)
	}
	return index
}

func (h *harness) poll() {
	h.t.Helper()
	if err := h.driver.Poll(); err != nil {
		h.t.Fatalf("Poll failed: %v", err)
	}
}

// cycle submits the active submission, retires it and starts the next one.
func (h *harness) cycle() {
	h.t.Helper()
	h.submit()
	h.poll()
	h.begin()
}

func (h *harness) get(addr PhysAddr, size uint32, tr Transform) *Entry {
	h.t.Helper()
	e, err := h.driver.GetMemCache(addr, size, tr)
	if err != nil {
		h.t.Fatalf("GetMemCache(%#x, %d) failed: %v", addr, size, err)
	}
	return e
}

// span returns emulated memory of the harness.
func (h *harness) span(addr PhysAddr, size uint32) []byte {
	h.t.Helper()
	b, err := h.mem.Span(addr, size)
	if err != nil {
		h.t.Fatalf("Span failed: %v", err)
	}
	return b
}

// gpuBytes returns a copy of the first n bytes of a software buffer.
func (h *harness) gpuBytes(buf hal.Buffer, n uint64) []byte {
	h.t.Helper()
	mapping, err := h.device.MapBuffer(buf, 0, n)
	if err != nil {
		h.t.Fatalf("MapBuffer failed: %v", err)
	}
	out := make([]byte, n)
	copy(out, unsafeBytes(mapping.Ptr, int(n)))
	if err := h.device.UnmapBuffer(buf); err != nil {
		h.t.Fatalf("UnmapBuffer failed: %v", err)
	}
	return out
}

// fill writes a deterministic pattern into emulated memory.
func (h *harness) fill(addr PhysAddr, size uint32, seed byte) {
	h.t.Helper()
	b := h.span(addr, size)
	for i := range b {
		b[i] = byte(i*7) ^ seed
	}
}

// countingHasher wraps the default hasher and counts calls.
type countingHasher struct {
	calls atomic.Int64
}

func (c *countingHasher) hash(b []byte) uint64 {
	c.calls.Add(1)
	return defaultOptions().hasher(b)
}

func unsafeBytes(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}
