package postprocess

import (
	"image"
	"image/color"
	"testing"
)

func TestDownsample(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetNRGBA(x, y, color.NRGBA{200, 100, 50, 255})
		}
	}
	out := Downsample(src, 2)
	if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 4 {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	c := out.NRGBAAt(1, 1)
	if diff(c.R, 200) > 1 || diff(c.G, 100) > 1 || diff(c.B, 50) > 1 || c.A < 254 {
		t.Fatalf("flat color changed to %v", c)
	}
	if Downsample(src, 1) != src {
		t.Fatal("factor 1 copied the image")
	}
}

func TestDownsampleKeepsEdgeColor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			src.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	out := Downsample(src, 2)
	c := out.NRGBAAt(0, 0)
	if c.A == 0 || c.R < 250 {
		t.Fatalf("edge pixel = %v, want opaque-ish white without a dark fringe", c)
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
