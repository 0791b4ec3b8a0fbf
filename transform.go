package memcache

import (
	"fmt"

	"github.com/gogpu/memcache/tiling"
)

// TransformMode tags the layout conversion applied between emulated memory
// and the GPU buffer.
type TransformMode uint8

const (
	// TransformIdentity copies bytes unchanged.
	TransformIdentity TransformMode = iota
	// TransformTiled untiles on upload and retiles on writeback.
	TransformTiled
)

// String returns the string representation of TransformMode.
func (m TransformMode) String() string {
	switch m {
	case TransformIdentity:
		return "Identity"
	case TransformTiled:
		return "Tiled"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// Transform describes how bytes are reshaped between emulated memory and the
// GPU buffer. Tiled is only meaningful when Mode is TransformTiled.
type Transform struct {
	Mode  TransformMode
	Tiled tiling.Params
}

// Identity returns the transform that leaves bytes unchanged.
func Identity() Transform {
	return Transform{Mode: TransformIdentity}
}

// Tiled returns a transform converting between the tiled layout described by
// p in emulated memory and linear layout in the GPU buffer.
func Tiled(p tiling.Params) Transform {
	return Transform{Mode: TransformTiled, Tiled: p}
}

// Equal reports whether two transforms describe the same conversion.
func (t Transform) Equal(o Transform) bool {
	if t.Mode != o.Mode {
		return false
	}
	if t.Mode == TransformTiled {
		return t.Tiled == o.Tiled
	}
	return true
}

// String returns a human-readable description of the transform.
func (t Transform) String() string {
	if t.Mode != TransformTiled {
		return t.Mode.String()
	}
	p := t.Tiled
	return fmt.Sprintf("Tiled[%s pitch=%d height=%d depth=%d samples=%d bpp=%d depth_fmt=%v swizzle=%#x]",
		p.TileMode, p.Pitch, p.Height, p.Depth, p.Samples, p.BitsPerPixel, p.IsDepth, p.Swizzle)
}

// check verifies that the transform belongs to the closed set this package
// converts and that a tiled surface fits inside size bytes.
func (t Transform) check(size uint32) error {
	switch t.Mode {
	case TransformIdentity:
		return nil
	case TransformTiled:
		surface, err := tiling.SurfaceSize(t.Tiled)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnsupportedTransform, err)
		}
		if surface > uint64(size) {
			return fmt.Errorf("%w: tiled surface of %d bytes exceeds range of %d bytes",
				ErrUnsupportedTransform, surface, size)
		}
		return nil
	default:
		return fmt.Errorf("%w: mode %s", ErrUnsupportedTransform, t.Mode)
	}
}
