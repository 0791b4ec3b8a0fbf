package tiling

import (
	"errors"
	"fmt"
)

// Tiling errors.
var (
	// ErrUnsupportedTileMode is returned for tile modes the codec cannot convert.
	ErrUnsupportedTileMode = errors.New("tiling: unsupported tile mode")

	// ErrInvalidParams is returned when the surface geometry is inconsistent.
	ErrInvalidParams = errors.New("tiling: invalid surface parameters")

	// ErrBufferTooSmall is returned when src or dst cannot hold the surface.
	ErrBufferTooSmall = errors.New("tiling: buffer smaller than surface")
)

// TileMode selects the tiled layout of a surface.
// Values match the hardware tile mode register encoding.
type TileMode uint32

const (
	// LinearGeneral stores rows back to back without alignment.
	LinearGeneral TileMode = 0
	// LinearAligned stores rows back to back with pitch alignment.
	LinearAligned TileMode = 1
	// Tiled1DThin1 stores 8x8 micro tiles in row-major tile order.
	Tiled1DThin1 TileMode = 2
	// Tiled1DThick stores 8x8x4 micro tiles in row-major tile order.
	Tiled1DThick TileMode = 3
	// Tiled2DThin1 groups 8x8 micro tiles into swizzled 4x2 macro tiles.
	Tiled2DThin1 TileMode = 4
	// Tiled2DThick groups 8x8x4 micro tiles into swizzled 4x2 macro tiles.
	Tiled2DThick TileMode = 7
)

// String returns the string representation of TileMode.
func (m TileMode) String() string {
	switch m {
	case LinearGeneral:
		return "LinearGeneral"
	case LinearAligned:
		return "LinearAligned"
	case Tiled1DThin1:
		return "Tiled1DThin1"
	case Tiled1DThick:
		return "Tiled1DThick"
	case Tiled2DThin1:
		return "Tiled2DThin1"
	case Tiled2DThick:
		return "Tiled2DThick"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(m))
	}
}

// Supported reports whether the codec can convert surfaces in this mode.
func (m TileMode) Supported() bool {
	switch m {
	case LinearGeneral, LinearAligned, Tiled1DThin1, Tiled1DThick, Tiled2DThin1, Tiled2DThick:
		return true
	default:
		return false
	}
}

func (m TileMode) linear() bool { return m == LinearGeneral || m == LinearAligned }
func (m TileMode) thick() bool  { return m == Tiled1DThick || m == Tiled2DThick }
func (m TileMode) macro() bool  { return m == Tiled2DThin1 || m == Tiled2DThick }

// Tile geometry.
const (
	microTileWidth  = 8
	microTileHeight = 8
	microTileThick  = 4
	microTileLen    = microTileWidth * microTileHeight

	numBanks = 4
	numPipes = 2

	macroTileWidth  = microTileWidth * numBanks  // 32 elements
	macroTileHeight = microTileHeight * numPipes // 16 rows
	microPerMacro   = numBanks * numPipes
)

// Params describes a surface for conversion.
type Params struct {
	// Pitch is the row length in elements.
	Pitch uint32

	// TileMode is the layout of the tiled side.
	TileMode TileMode

	// Swizzle carries the bank (bits 9-10) and pipe (bit 8) swizzle of 2D modes.
	Swizzle uint32

	// Height is the number of rows per slice.
	Height uint32

	// Depth is the number of slices. Zero is treated as one.
	Depth uint32

	// Samples is the multisample count (1, 2, 4 or 8). Zero is treated as one.
	Samples uint32

	// IsDepth selects the depth-buffer element order inside micro tiles.
	IsDepth bool

	// BitsPerPixel is the element size: 8, 16, 32, 64 or 128.
	BitsPerPixel uint32
}

func (p Params) depth() uint32 {
	if p.Depth == 0 {
		return 1
	}
	return p.Depth
}

func (p Params) samples() uint32 {
	if p.Samples == 0 {
		return 1
	}
	return p.Samples
}

func (p Params) bytesPerElement() uint64 {
	return uint64(p.BitsPerPixel / 8)
}

// Validate checks that the parameters describe a surface the codec can convert.
func (p Params) Validate() error {
	if !p.TileMode.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedTileMode, p.TileMode)
	}
	switch p.BitsPerPixel {
	case 8, 16, 32, 64, 128:
	default:
		return fmt.Errorf("%w: %d bits per pixel", ErrInvalidParams, p.BitsPerPixel)
	}
	switch p.samples() {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: %d samples", ErrInvalidParams, p.Samples)
	}
	if p.Pitch == 0 || p.Height == 0 {
		return fmt.Errorf("%w: empty surface %dx%d", ErrInvalidParams, p.Pitch, p.Height)
	}
	if p.TileMode.linear() {
		return nil
	}

	alignW, alignH := uint32(microTileWidth), uint32(microTileHeight)
	if p.TileMode.macro() {
		alignW, alignH = macroTileWidth, macroTileHeight
	}
	if p.Pitch%alignW != 0 {
		return fmt.Errorf("%w: pitch %d not a multiple of %d for %s", ErrInvalidParams, p.Pitch, alignW, p.TileMode)
	}
	if p.Height%alignH != 0 {
		return fmt.Errorf("%w: height %d not a multiple of %d for %s", ErrInvalidParams, p.Height, alignH, p.TileMode)
	}
	if p.TileMode.thick() && p.depth()%microTileThick != 0 {
		return fmt.Errorf("%w: depth %d not a multiple of %d for %s", ErrInvalidParams, p.depth(), microTileThick, p.TileMode)
	}
	return nil
}

// SurfaceSize returns the number of bytes covered by the surface.
func SurfaceSize(p Params) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return uint64(p.Pitch) * uint64(p.Height) * uint64(p.depth()) * uint64(p.samples()) * p.bytesPerElement(), nil
}
