package ctrtex

import "encoding/binary"

// etcModifiers is the ETC1 intensity table; each row lists the small and large
// modifier, applied as {+a, +b, -a, -b} by the 2-bit texel index.
var etcModifiers = [8][2]int{
	{2, 8},
	{5, 17},
	{9, 29},
	{13, 42},
	{18, 60},
	{24, 80},
	{33, 106},
	{47, 183},
}

var etcDiff = [8]int{0, 1, 2, 3, -4, -3, -2, -1}

// Blocks inside an 8×8 tile are stored in Z order.
var etcBlockOrder = [4][2]int{{0, 0}, {4, 0}, {0, 4}, {4, 4}}

func decodeETC(raw []byte, w, h int, hasAlpha bool, out []float32) {
	off := 0
	for ty := 0; ty < h; ty += 8 {
		for tx := 0; tx < w; tx += 8 {
			for _, b := range etcBlockOrder {
				alpha := ^uint64(0)
				if hasAlpha {
					alpha = binary.LittleEndian.Uint64(raw[off:])
					off += 8
				}
				// Stored byte-reversed, so a little-endian load yields the
				// standard big-endian ETC1 word.
				color := binary.LittleEndian.Uint64(raw[off:])
				off += 8
				decodeETCBlock(color, alpha, tx+b[0], ty+b[1], w, out)
			}
		}
	}
}

func decodeETCBlock(v, alpha uint64, bx, by, w int, out []float32) {
	var base [2][3]int
	if v>>33&1 == 0 {
		for c := 0; c < 3; c++ {
			a := int(v >> (60 - c*8) & 0xF)
			b := int(v >> (56 - c*8) & 0xF)
			base[0][c] = a<<4 | a
			base[1][c] = b<<4 | b
		}
	} else {
		for c := 0; c < 3; c++ {
			a := int(v >> (59 - c*8) & 0x1F)
			b := a + etcDiff[v>>(56-c*8)&0x7]
			b = clampInt(b, 0, 31)
			base[0][c] = a<<3 | a>>2
			base[1][c] = b<<3 | b>>2
		}
	}
	tables := [2][2]int{etcModifiers[v>>37&0x7], etcModifiers[v>>34&0x7]}
	flip := v>>32&1 == 1

	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			i := uint(x*4 + y)
			sub := 0
			if (!flip && x >= 2) || (flip && y >= 2) {
				sub = 1
			}
			idx := v>>i&1 | v>>(15+i)&2
			mod := tables[sub][idx&1]
			if idx&2 != 0 {
				mod = -mod
			}
			d := ((by+y)*w + bx + x) * 4
			for c := 0; c < 3; c++ {
				out[d+c] = float32(clampInt(base[sub][c]+mod, 0, 255)) / 255
			}
			a := alpha >> (i * 4) & 0xF
			out[d+3] = float32(a*0x11) / 255
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
