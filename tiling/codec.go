package tiling

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultMinParallelBytes is the surface size from which the package-level
// functions convert sample planes and slices concurrently (1 MB).
const DefaultMinParallelBytes = 1 << 20

// Converter converts surfaces, optionally in parallel.
// The zero value converts on the calling goroutine only.
type Converter struct {
	// MinParallelBytes is the surface size at which conversion is split
	// across goroutines, one per slice and sample plane. Zero disables
	// parallel conversion.
	MinParallelBytes uint64

	// Workers bounds the number of goroutines. Zero means GOMAXPROCS.
	Workers int
}

var defaultConverter = Converter{MinParallelBytes: DefaultMinParallelBytes}

// ToLinear converts the tiled surface in src into linear layout in dst.
func ToLinear(dst, src []byte, p Params) error {
	return defaultConverter.ToLinear(dst, src, p)
}

// ToTiled converts the linear surface in src into tiled layout in dst.
func ToTiled(dst, src []byte, p Params) error {
	return defaultConverter.ToTiled(dst, src, p)
}

// ToLinear converts the tiled surface in src into linear layout in dst.
func (c Converter) ToLinear(dst, src []byte, p Params) error {
	return c.convert(dst, src, p, false)
}

// ToTiled converts the linear surface in src into tiled layout in dst.
func (c Converter) ToTiled(dst, src []byte, p Params) error {
	return c.convert(dst, src, p, true)
}

func (c Converter) convert(dst, src []byte, p Params, toTiled bool) error {
	size, err := SurfaceSize(p)
	if err != nil {
		return err
	}
	if uint64(len(src)) < size || uint64(len(dst)) < size {
		return fmt.Errorf("%w: need %d bytes, src %d, dst %d", ErrBufferTooSmall, size, len(src), len(dst))
	}

	if p.TileMode.linear() {
		copy(dst, src)
		return nil
	}

	l := newLayout(p)
	planes := p.samples() * p.depth()

	if c.MinParallelBytes == 0 || size < c.MinParallelBytes || planes < 2 {
		for s := range p.samples() {
			for z := range p.depth() {
				l.convertPlane(dst, src, z, s, toTiled)
			}
		}
	} else {
		workers := c.Workers
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		var g errgroup.Group
		g.SetLimit(workers)
		for s := range p.samples() {
			for z := range p.depth() {
				// Planes write disjoint byte ranges of dst.
				g.Go(func() error {
					l.convertPlane(dst, src, z, s, toTiled)
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	n := min(len(dst), len(src))
	if uint64(n) > size {
		copy(dst[size:n], src[size:n])
	}
	return nil
}

// layout precomputes the addressing of one tiled surface.
type layout struct {
	p     Params
	bpe   uint64
	depth uint64
	table microTileTable

	thick      bool
	macro      bool
	planeBytes uint64 // one sample plane of one micro tile
	tileBytes  uint64 // all sample planes of one micro tile

	tilesPerRow  uint64
	tilesPerCol  uint64
	macrosPerRow uint64
	macrosPerCol uint64

	bankSwizzle uint32
	pipeSwizzle uint32
}

func newLayout(p Params) *layout {
	l := &layout{
		p:           p,
		bpe:         p.bytesPerElement(),
		depth:       uint64(p.depth()),
		table:       newMicroTileTable(p),
		thick:       p.TileMode.thick(),
		macro:       p.TileMode.macro(),
		tilesPerRow: uint64(p.Pitch / microTileWidth),
		tilesPerCol: uint64(p.Height / microTileHeight),
		bankSwizzle: (p.Swizzle >> 9) & (numBanks - 1),
		pipeSwizzle: (p.Swizzle >> 8) & (numPipes - 1),
	}
	l.planeBytes = uint64(len(l.table)) * l.bpe
	l.tileBytes = l.planeBytes * uint64(p.samples())
	l.macrosPerRow = l.tilesPerRow / numBanks
	l.macrosPerCol = l.tilesPerCol / numPipes
	return l
}

func (l *layout) linearOffset(x, y, z, s uint32) uint64 {
	row := (uint64(s)*l.depth+uint64(z))*uint64(l.p.Height) + uint64(y)
	return (row*uint64(l.p.Pitch) + uint64(x)) * l.bpe
}

func (l *layout) tiledOffset(x, y, z, s uint32) uint64 {
	tx, ty := x/microTileWidth, y/microTileHeight
	group, local := z, uint32(0)
	if l.thick {
		group, local = z/microTileThick, z%microTileThick
	}
	elem := uint64(l.table[(local*microTileHeight+y%microTileHeight)*microTileWidth+x%microTileWidth])

	var tile uint64
	if !l.macro {
		tile = (uint64(group)*l.tilesPerCol+uint64(ty))*l.tilesPerRow + uint64(tx)
	} else {
		mx, my := tx/numBanks, ty/numPipes
		macroIndex := (uint64(group)*l.macrosPerCol+uint64(my))*l.macrosPerRow + uint64(mx)
		m := (ty%numPipes)*numBanks + tx%numBanks
		m ^= l.rotation(mx, my, group)
		tile = macroIndex*microPerMacro + uint64(m)
	}
	return tile*l.tileBytes + uint64(s)*l.planeBytes + elem*l.bpe
}

// rotation returns the micro tile permutation applied inside one macro tile.
// The result is below microPerMacro, so XOR with it permutes the macro tile.
func (l *layout) rotation(mx, my, group uint32) uint32 {
	bank := (l.bankSwizzle + group + my) % numBanks
	pipe := (l.pipeSwizzle ^ mx ^ group) & (numPipes - 1)
	return bank*numPipes + pipe
}

func (l *layout) convertPlane(dst, src []byte, z, s uint32, toTiled bool) {
	bpe := l.bpe
	for y := range l.p.Height {
		for x := range l.p.Pitch {
			lin := l.linearOffset(x, y, z, s)
			til := l.tiledOffset(x, y, z, s)
			if toTiled {
				copy(dst[til:til+bpe], src[lin:lin+bpe])
			} else {
				copy(dst[lin:lin+bpe], src[til:til+bpe])
			}
		}
	}
}
