package tiling

// axis identifies the coordinate a pixel index bit is taken from.
type axis uint8

const (
	axisX axis = iota
	axisY
	axisZ
)

// bitSource names one coordinate bit.
type bitSource struct {
	axis axis
	bit  uint8
}

var (
	x0, x1, x2 = bitSource{axisX, 0}, bitSource{axisX, 1}, bitSource{axisX, 2}
	y0, y1, y2 = bitSource{axisY, 0}, bitSource{axisY, 1}, bitSource{axisY, 2}
	z0, z1     = bitSource{axisZ, 0}, bitSource{axisZ, 1}
)

// pixelOrder returns the coordinate bits that make up the element index
// inside a thin micro tile, lowest index bit first.
func pixelOrder(bpp uint32, isDepth bool) [6]bitSource {
	if isDepth {
		return [6]bitSource{x0, y0, x1, y1, x2, y2}
	}
	switch bpp {
	case 8:
		return [6]bitSource{x0, x1, x2, y1, y0, y2}
	case 16:
		return [6]bitSource{x0, x1, x2, y0, y1, y2}
	case 64:
		return [6]bitSource{x0, y0, x1, x2, y1, y2}
	case 128:
		return [6]bitSource{y0, x0, x1, x2, y1, y2}
	default:
		return [6]bitSource{x0, x1, y0, x2, y1, y2}
	}
}

// microTileTable maps a local (x, y, z) inside a micro tile, packed as
// (z*8+y)*8+x, to the element index in the tiled micro tile.
type microTileTable []uint16

func newMicroTileTable(p Params) microTileTable {
	thick := uint32(1)
	if p.TileMode.thick() {
		thick = microTileThick
	}
	order := pixelOrder(p.BitsPerPixel, p.IsDepth)

	table := make(microTileTable, microTileLen*thick)
	for z := range thick {
		for y := range uint32(microTileHeight) {
			for x := range uint32(microTileWidth) {
				var idx uint32
				for i, src := range order {
					idx |= coordBit(src, x, y, z) << i
				}
				if thick > 1 {
					idx |= coordBit(z0, x, y, z) << 6
					idx |= coordBit(z1, x, y, z) << 7
				}
				table[(z*microTileHeight+y)*microTileWidth+x] = uint16(idx) //nolint:gosec // idx < 256
			}
		}
	}
	return table
}

func coordBit(src bitSource, x, y, z uint32) uint32 {
	var v uint32
	switch src.axis {
	case axisX:
		v = x
	case axisY:
		v = y
	default:
		v = z
	}
	return (v >> src.bit) & 1
}
