package ctrtex

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
)

// Encode packs linear RGBA floats into the tiled layout of an uncompressed
// format. It is the inverse of Decode for values representable in format.
func Encode(rgba []float32, width, height int, format Format) ([]byte, error) {
	if format.BlockCompressed() || !format.Known() {
		return nil, fmt.Errorf("ctrtex: cannot encode %s", format)
	}
	if err := checkDims(width, height, format); err != nil {
		return nil, err
	}
	if len(rgba) != width*height*4 {
		return nil, fmt.Errorf("ctrtex: have %d floats for %dx%d", len(rgba), width, height)
	}
	bpp := format.BitsPerPixel()
	out := make([]byte, ExpectedSize(width, height, format))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s := (y*width + x) * 4
			px := [4]uint8{to8(rgba[s]), to8(rgba[s+1]), to8(rgba[s+2]), to8(rgba[s+3])}
			i := texelIndex(x, y, width)
			if bpp == 4 {
				n := px[0] >> 4
				if format == A4 {
					n = px[3] >> 4
				}
				if i&1 == 1 {
					out[i/2] |= n << 4
				} else {
					out[i/2] |= n
				}
				continue
			}
			o := i * bpp / 8
			encodeTexel(out[o:o+bpp/8], px, format)
		}
	}
	return out, nil
}

func encodeTexel(b []byte, px [4]uint8, f Format) {
	r, g, bl, a := px[0], px[1], px[2], px[3]
	switch f {
	case RGBA8:
		b[0], b[1], b[2], b[3] = a, bl, g, r
	case RGB8:
		b[0], b[1], b[2] = bl, g, r
	case RGBA5551:
		v := uint16(r>>3)<<11 | uint16(g>>3)<<6 | uint16(bl>>3)<<1 | uint16(a>>7)
		binary.LittleEndian.PutUint16(b, v)
	case RGB565:
		v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(bl>>3)
		binary.LittleEndian.PutUint16(b, v)
	case RGBA4444:
		v := uint16(r>>4)<<12 | uint16(g>>4)<<8 | uint16(bl>>4)<<4 | uint16(a>>4)
		binary.LittleEndian.PutUint16(b, v)
	case LA8:
		b[0], b[1] = a, r
	case HiLo8:
		b[0], b[1] = g, r
	case L8:
		b[0] = r
	case A8:
		b[0] = a
	case LA4:
		b[0] = r>>4<<4 | a>>4
	}
}

func to8(v float32) uint8 {
	return uint8(math.Round(float64(clampF(v)) * 255))
}

func clampF(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ToNRGBA converts a decoded buffer into an image. Values are clamped.
func ToNRGBA(rgba []float32, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	n := width * height * 4
	if len(rgba) < n {
		n = len(rgba)
	}
	for i := 0; i < n; i++ {
		img.Pix[i] = to8(rgba[i])
	}
	return img
}

// FlipRows reverses row order in place. PICA textures keep their origin at
// the bottom-left, so hosts with a top-left origin flip once after Decode.
func FlipRows(rgba []float32, width, height int) {
	stride := width * 4
	row := make([]float32, stride)
	for y := 0; y < height/2; y++ {
		top := rgba[y*stride : (y+1)*stride]
		bot := rgba[(height-1-y)*stride : (height-y)*stride]
		copy(row, top)
		copy(top, bot)
		copy(bot, row)
	}
}
