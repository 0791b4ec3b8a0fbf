package memcache

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/memcache/tiling"
)

func tiledParams() tiling.Params {
	return tiling.Params{
		Pitch:        64,
		TileMode:     tiling.Tiled2DThin1,
		Swizzle:      0x300,
		Height:       32,
		Depth:        1,
		Samples:      1,
		BitsPerPixel: 32,
	}
}

func TestTransformCheck(t *testing.T) {
	p := tiledParams()
	tests := []struct {
		name    string
		tr      Transform
		size    uint32
		wantErr bool
	}{
		{"identity", Identity(), 1, false},
		{"tiled fits", Tiled(p), 64 * 32 * 4, false},
		{"tiled with trailing bytes", Tiled(p), 64*32*4 + 100, false},
		{"tiled too large", Tiled(p), 64*32*4 - 1, true},
		{"tiled bad mode", Tiled(tiling.Params{Pitch: 64, Height: 32, BitsPerPixel: 32, TileMode: 5}), 1 << 20, true},
		{"tiled bad pitch", Tiled(tiling.Params{Pitch: 60, Height: 32, BitsPerPixel: 32, TileMode: tiling.Tiled1DThin1}), 1 << 20, true},
		{"unknown mode", Transform{Mode: 9}, 16, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tr.check(tt.size)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedTransform) {
					t.Errorf("check() = %v, want ErrUnsupportedTransform", err)
				}
				return
			}
			if err != nil {
				t.Errorf("check() = %v, want nil", err)
			}
		})
	}
}

func TestTransformEqual(t *testing.T) {
	p := tiledParams()
	q := p
	q.Swizzle = 0

	if !Identity().Equal(Transform{Mode: TransformIdentity, Tiled: p}) {
		t.Error("identity transforms should ignore tiling params")
	}
	if !Tiled(p).Equal(Tiled(p)) {
		t.Error("equal tiled transforms reported different")
	}
	if Tiled(p).Equal(Tiled(q)) {
		t.Error("tiled transforms with different swizzle reported equal")
	}
	if Tiled(p).Equal(Identity()) {
		t.Error("tiled and identity reported equal")
	}
}

func TestTransformString(t *testing.T) {
	if got := Identity().String(); got != "Identity" {
		t.Errorf("Identity().String() = %q", got)
	}
	if got := (Transform{Mode: 42}).String(); got != "Unknown(42)" {
		t.Errorf("unknown String() = %q", got)
	}
	if got := Tiled(tiledParams()).String(); !bytes.Contains([]byte(got), []byte("pitch=64")) {
		t.Errorf("Tiled String() = %q, want pitch", got)
	}
}

func TestTiledRoundTrip(t *testing.T) {
	p := tiledParams()
	const size = 64 * 32 * 4
	h := newHarness(t, 3*size)
	h.fill(size, size, 0x3C)
	tiled := bytes.Clone(h.span(size, size))

	h.begin()
	e := h.get(size, size, Tiled(p))

	linear := make([]byte, size)
	if err := tiling.ToLinear(linear, tiled, p); err != nil {
		t.Fatalf("ToLinear failed: %v", err)
	}
	if !bytes.Equal(h.gpuBytes(e.Buffer(), size), linear) {
		t.Fatal("GPU buffer does not hold the untiled surface")
	}

	if err := h.driver.Invalidate(e); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	clear(h.span(size, size))
	h.submit()
	h.poll()

	if !bytes.Equal(h.span(size, size), tiled) {
		t.Error("tiled round trip did not restore memory")
	}
}

func TestTiledRoundTripParallel(t *testing.T) {
	p := tiling.Params{
		Pitch:        32,
		TileMode:     tiling.Tiled2DThick,
		Swizzle:      0x200,
		Height:       32,
		Depth:        8,
		Samples:      1,
		BitsPerPixel: 64,
	}
	size, err := tiling.SurfaceSize(p)
	if err != nil {
		t.Fatalf("SurfaceSize failed: %v", err)
	}
	h := newHarness(t, int(size), WithParallelTiling(1), WithScratchBuffers(1))
	h.fill(0, uint32(size), 0x77)
	want := bytes.Clone(h.span(0, uint32(size)))

	h.begin()
	e := h.get(0, uint32(size), Tiled(p))
	if err := h.driver.Invalidate(e); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	clear(h.span(0, uint32(size)))
	h.submit()
	h.poll()

	if !bytes.Equal(h.span(0, uint32(size)), want) {
		t.Error("parallel tiled round trip did not restore memory")
	}
	if h.driver.scratch.idle() != 1 {
		t.Errorf("scratch buffers retained = %d, want 1", h.driver.scratch.idle())
	}
}

func TestUnsupportedTransformIsRejected(t *testing.T) {
	h := newHarness(t, 1024)
	h.begin()

	_, err := h.driver.GetMemCache(0, 64, Transform{Mode: 7})
	if !errors.Is(err, ErrUnsupportedTransform) {
		t.Fatalf("GetMemCache = %v, want ErrUnsupportedTransform", err)
	}
	if h.driver.Len() != 0 {
		t.Error("entry created for unsupported transform")
	}
}

func TestUnsupportedTransformAborts(t *testing.T) {
	var aborted []error
	h := newHarness(t, 1024,
		WithAbortOnFatal(true),
		WithAbortFunc(func(err error) { aborted = append(aborted, err) }),
	)
	h.begin()

	// Construct an entry whose transform was corrupted after creation.
	e := h.get(0, 64, Identity())
	e.transform = Transform{Mode: 7}

	if err := h.driver.upload(e, h.span(0, 64)); !errors.Is(err, ErrUnsupportedTransform) {
		t.Errorf("upload = %v, want ErrUnsupportedTransform", err)
	}
	if err := h.driver.Invalidate(e); !errors.Is(err, ErrUnsupportedTransform) {
		t.Errorf("Invalidate = %v, want ErrUnsupportedTransform", err)
	}
	if len(aborted) != 2 {
		t.Fatalf("abort called %d times, want 2", len(aborted))
	}
	for _, err := range aborted {
		if !errors.Is(err, ErrUnsupportedTransform) {
			t.Errorf("abort received %v", err)
		}
	}
	if h.driver.PendingInvalidations() != 0 {
		t.Error("download registered for unsupported transform")
	}
}

func TestUnsupportedTransformDefaultAbortPanics(t *testing.T) {
	h := newHarness(t, 1024, WithAbortOnFatal(true))
	h.begin()

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrUnsupportedTransform) {
			t.Errorf("recovered %v, want ErrUnsupportedTransform panic", r)
		}
	}()
	_, _ = h.driver.GetMemCache(0, 64, Transform{Mode: 3})
	t.Error("GetMemCache returned instead of aborting")
}
