package ctrtex

import (
	"errors"
	"fmt"
)

// ErrCorruptTexture is returned when a payload does not match its declared shape.
var ErrCorruptTexture = errors.New("corrupt texture")

// Format is the PICA texture format tag stored in CMB and CTXB texture records.
type Format uint32

const (
	RGBA8    Format = 0x14016752
	RGB8     Format = 0x14016754
	RGBA5551 Format = 0x80346752
	RGB565   Format = 0x83636754
	RGBA4444 Format = 0x80336752
	LA8      Format = 0x14016758
	HiLo8    Format = 0x14016759
	L8       Format = 0x14016757
	A8       Format = 0x14016756
	LA4      Format = 0x67606758
	L4       Format = 0x67616757
	A4       Format = 0x67616756
	ETC1     Format = 0x0000675A
	ETC1A4   Format = 0x0000675B
)

var formatNames = map[Format]string{
	RGBA8:    "RGBA8",
	RGB8:     "RGB8",
	RGBA5551: "RGBA5551",
	RGB565:   "RGB565",
	RGBA4444: "RGBA4444",
	LA8:      "LA8",
	HiLo8:    "HiLo8",
	L8:       "L8",
	A8:       "A8",
	LA4:      "LA4",
	L4:       "L4",
	A4:       "A4",
	ETC1:     "ETC1",
	ETC1A4:   "ETC1A4",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(0x%08x)", uint32(f))
}

// Known reports whether f is one of the decodable formats.
func (f Format) Known() bool {
	_, ok := formatNames[f]
	return ok
}

// BlockCompressed reports whether f is an ETC1 variant.
func (f Format) BlockCompressed() bool {
	return f == ETC1 || f == ETC1A4
}

// BitsPerPixel returns the storage cost of one texel, 0 for unknown formats.
func (f Format) BitsPerPixel() int {
	switch f {
	case RGBA8:
		return 32
	case RGB8:
		return 24
	case RGBA5551, RGB565, RGBA4444, LA8, HiLo8:
		return 16
	case L8, A8, LA4, ETC1A4:
		return 8
	case L4, A4, ETC1:
		return 4
	}
	return 0
}

// ExpectedSize returns the byte length of a w×h image in format f.
func ExpectedSize(w, h int, f Format) int {
	return w * h * f.BitsPerPixel() / 8
}

// checkDims accepts whole 8×8 tiles, or a single square power-of-two sub-tile
// whose Morton indices stay inside w*h.
func checkDims(w, h int, f Format) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("ctrtex: invalid size %dx%d: %w", w, h, ErrCorruptTexture)
	}
	if w%8 == 0 && h%8 == 0 {
		return nil
	}
	if f.BlockCompressed() {
		return fmt.Errorf("ctrtex: %s needs 8x8 tiles, got %dx%d: %w", f, w, h, ErrCorruptTexture)
	}
	if w == h && w < 8 && w&(w-1) == 0 {
		return nil
	}
	return fmt.Errorf("ctrtex: size %dx%d is not tile aligned: %w", w, h, ErrCorruptTexture)
}
