package ctrtex

import (
	"encoding/binary"
	"fmt"
)

// Decode converts a PICA texture payload into linear RGBA floats in [0,1],
// width*height*4 values, row-major starting at row 0.
//
// ETC1 and ETC1A4 tags are always decoded as blocks. blockCompressed set on
// any other tag is inconsistent and rejected.
func Decode(raw []byte, width, height int, format Format, blockCompressed bool) ([]float32, error) {
	if !format.Known() {
		return nil, fmt.Errorf("ctrtex: unknown format %s: %w", format, ErrCorruptTexture)
	}
	if blockCompressed && !format.BlockCompressed() {
		return nil, fmt.Errorf("ctrtex: block-compressed flag on %s: %w", format, ErrCorruptTexture)
	}
	if err := checkDims(width, height, format); err != nil {
		return nil, err
	}
	if width*height*format.BitsPerPixel()%8 != 0 {
		return nil, fmt.Errorf("ctrtex: %dx%d %s is not byte aligned: %w", width, height, format, ErrCorruptTexture)
	}
	if want := ExpectedSize(width, height, format); len(raw) != want {
		return nil, fmt.Errorf("ctrtex: %dx%d %s payload is %d bytes, want %d: %w",
			width, height, format, len(raw), want, ErrCorruptTexture)
	}

	out := make([]float32, width*height*4)
	if format.BlockCompressed() {
		decodeETC(raw, width, height, format == ETC1A4, out)
		return out, nil
	}

	bpp := format.BitsPerPixel()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := texelIndex(x, y, width)
			var px [4]uint8
			if bpp == 4 {
				n := raw[i/2]
				if i&1 == 1 {
					n >>= 4
				}
				px = decode4(n&0x0F, format)
			} else {
				o := i * bpp / 8
				px = decodeTexel(raw[o:o+bpp/8], format)
			}
			d := (y*width + x) * 4
			for c := 0; c < 4; c++ {
				out[d+c] = float32(px[c]) / 255
			}
		}
	}
	return out, nil
}

func decodeTexel(b []byte, f Format) [4]uint8 {
	switch f {
	case RGBA8:
		return [4]uint8{b[3], b[2], b[1], b[0]}
	case RGB8:
		return [4]uint8{b[2], b[1], b[0], 0xFF}
	case RGBA5551:
		v := binary.LittleEndian.Uint16(b)
		return [4]uint8{
			expand5(uint8(v >> 11 & 0x1F)),
			expand5(uint8(v >> 6 & 0x1F)),
			expand5(uint8(v >> 1 & 0x1F)),
			uint8(v&1) * 0xFF,
		}
	case RGB565:
		v := binary.LittleEndian.Uint16(b)
		return [4]uint8{
			expand5(uint8(v >> 11 & 0x1F)),
			expand6(uint8(v >> 5 & 0x3F)),
			expand5(uint8(v & 0x1F)),
			0xFF,
		}
	case RGBA4444:
		v := binary.LittleEndian.Uint16(b)
		return [4]uint8{
			uint8(v>>12&0xF) * 0x11,
			uint8(v>>8&0xF) * 0x11,
			uint8(v>>4&0xF) * 0x11,
			uint8(v&0xF) * 0x11,
		}
	case LA8:
		return [4]uint8{b[1], b[1], b[1], b[0]}
	case HiLo8:
		return [4]uint8{b[1], b[0], 0, 0xFF}
	case L8:
		return [4]uint8{b[0], b[0], b[0], 0xFF}
	case A8:
		return [4]uint8{0xFF, 0xFF, 0xFF, b[0]}
	case LA4:
		l := (b[0] >> 4) * 0x11
		return [4]uint8{l, l, l, (b[0] & 0xF) * 0x11}
	}
	return [4]uint8{}
}

func decode4(n uint8, f Format) [4]uint8 {
	v := n * 0x11
	if f == A4 {
		return [4]uint8{0xFF, 0xFF, 0xFF, v}
	}
	return [4]uint8{v, v, v, 0xFF}
}

func expand5(v uint8) uint8 { return v<<3 | v>>2 }
func expand6(v uint8) uint8 { return v<<2 | v>>4 }
