package ctrtex

// tileOrder maps a position inside an 8×8 tile (y*8+x) to its storage index.
// Storage follows Z-order with x in the even bits: x0 y0 x1 y1 x2 y2.
var tileOrder [64]int

func init() {
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			m := 0
			for b := 0; b < 3; b++ {
				m |= ((x >> b) & 1) << (2 * b)
				m |= ((y >> b) & 1) << (2*b + 1)
			}
			tileOrder[y*8+x] = m
		}
	}
}

// texelIndex returns the storage index of pixel (x, y) in an image w texels wide.
func texelIndex(x, y, w int) int {
	tilesPerRow := (w + 7) / 8
	tile := (y>>3)*tilesPerRow + (x >> 3)
	return tile*64 + tileOrder[(y&7)*8+(x&7)]
}
