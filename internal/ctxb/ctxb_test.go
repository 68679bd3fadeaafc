package ctxb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/ctrtex"
	"ctr-asset-decoder/internal/ctxb/ctxbtest"
)

func TestParse(t *testing.T) {
	data := ctxbtest.Build([]ctxbtest.Texture{
		ctxbtest.Gray("grass", 0x80),
		{Width: 8, Height: 8, Format: ctrtex.RGBA8, Data: make([]byte, 10)},
	})
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if int(f.Size) != len(data) {
		t.Fatalf("Size = %d, want %d", f.Size, len(data))
	}
	f.Name = "field"
	texs := f.Textures()
	if len(texs) != 2 {
		t.Fatalf("got %d textures, want 2", len(texs))
	}
	if texs[0].Name != "grass" || texs[1].Name != "field_1" {
		t.Fatalf("names = %q, %q", texs[0].Name, texs[1].Name)
	}
	if texs[0].Width != 8 || texs[0].Format != ctrtex.L8 || len(texs[0].Data) != 64 {
		t.Fatalf("texture 0 = %+v", texs[0])
	}

	res := f.DecodeAll(2)
	if res[0].Err != nil {
		t.Fatalf("texture 0: %v", res[0].Err)
	}
	if got := res[0].RGBA[0]; got != float32(0x80)/255 {
		t.Fatalf("texel = %v", got)
	}
	if !errors.Is(res[1].Err, ctrtex.ErrCorruptTexture) {
		t.Fatalf("texture 1 err = %v, want ErrCorruptTexture", res[1].Err)
	}
}

func TestParseTruncated(t *testing.T) {
	data := ctxbtest.Build([]ctxbtest.Texture{ctxbtest.Gray("a", 0)})
	_, err := Parse(data[:len(data)-1])
	if !errors.Is(err, binreader.ErrUnexpectedEOD) {
		t.Fatalf("err = %v, want ErrUnexpectedEOD", err)
	}
	if _, err := Parse([]byte("xxxx")); err == nil {
		t.Fatal("bad magic accepted")
	}
}

func TestLoadNamesAfterFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.ctxb")
	data := ctxbtest.Build([]ctxbtest.Texture{{Width: 8, Height: 8, Format: ctrtex.A8, Data: make([]byte, 64)}})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.Textures()[0].Name; got != "tree" {
		t.Fatalf("name = %q, want tree", got)
	}
}
