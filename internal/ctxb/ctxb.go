// Package ctxb reads CTXB texture containers.
package ctxb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/ctrtex"
)

const Magic = "ctxb"

// File is a parsed texture container.
type File struct {
	Name   string // base name used for unnamed textures
	Size   uint32
	Chunks []Chunk
}

type Chunk struct {
	Magic    string
	Textures []ctrtex.Texture
}

// Load reads and parses a CTXB file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ctxb: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return f, nil
}

// Parse decodes the container tables and slices every texture payload.
func Parse(data []byte) (*File, error) {
	r := binreader.New(data)
	magic, err := r.String(4)
	if err != nil {
		return nil, fmt.Errorf("ctxb: header: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("ctxb: bad magic %q", magic)
	}
	var h struct {
		size, chunks, chunkOff, dataOff uint32
	}
	if h.size, err = r.U32(); err != nil {
		return nil, fmt.Errorf("ctxb: header: %w", err)
	}
	if h.chunks, err = r.U32(); err != nil {
		return nil, fmt.Errorf("ctxb: header: %w", err)
	}
	if err = r.Skip(4); err != nil {
		return nil, fmt.Errorf("ctxb: header: %w", err)
	}
	if h.chunkOff, err = r.U32(); err != nil {
		return nil, fmt.Errorf("ctxb: header: %w", err)
	}
	if h.dataOff, err = r.U32(); err != nil {
		return nil, fmt.Errorf("ctxb: header: %w", err)
	}

	f := &File{Size: h.size}
	if err := r.Seek(int(h.chunkOff)); err != nil {
		return nil, fmt.Errorf("ctxb: chunk table: %w", err)
	}
	for c := uint32(0); c < h.chunks; c++ {
		ch, err := readChunk(r, int(h.dataOff))
		if err != nil {
			return nil, fmt.Errorf("ctxb: chunk %d: %w", c, err)
		}
		f.Chunks = append(f.Chunks, ch)
	}
	return f, nil
}

func readChunk(r *binreader.Reader, dataOff int) (Chunk, error) {
	var ch Chunk
	var err error
	if ch.Magic, err = r.String(4); err != nil {
		return ch, err
	}
	if _, err = r.U32(); err != nil { // section size
		return ch, err
	}
	count, err := r.U32()
	if err != nil {
		return ch, err
	}
	for i := uint32(0); i < count; i++ {
		t, err := readTexture(r, dataOff)
		if err != nil {
			return ch, fmt.Errorf("texture %d: %w", i, err)
		}
		ch.Textures = append(ch.Textures, t)
	}
	return ch, nil
}

// readTexture reads one 36-byte record and slices its payload.
func readTexture(r *binreader.Reader, dataOff int) (ctrtex.Texture, error) {
	var t ctrtex.Texture
	rec, err := r.Bytes(36)
	if err != nil {
		return t, err
	}
	rr := binreader.New(rec)
	size, _ := rr.U32()
	levels, _ := rr.U16()
	rr.Skip(2)
	w, _ := rr.U16()
	h, _ := rr.U16()
	format, _ := rr.U32()
	off, _ := rr.U32()
	name, _ := rr.String(16)

	t = ctrtex.Texture{
		Name:            strings.TrimSpace(name),
		Width:           int(w),
		Height:          int(h),
		Levels:          max(int(levels), 1),
		Format:          ctrtex.Format(format),
		BlockCompressed: ctrtex.Format(format).BlockCompressed(),
	}
	payload, err := r.Sub(dataOff+int(off), int(size))
	if err != nil {
		return t, fmt.Errorf("payload of %q: %w", t.Name, err)
	}
	t.Data = payload.Data()
	return t, nil
}

// Textures flattens all chunks. Unnamed textures are called after the file.
func (f *File) Textures() []ctrtex.Texture {
	var out []ctrtex.Texture
	for _, ch := range f.Chunks {
		out = append(out, ch.Textures...)
	}
	for i := range out {
		if out[i].Name != "" {
			continue
		}
		base := f.Name
		if base == "" {
			base = "texture"
		}
		if len(out) == 1 {
			out[i].Name = base
		} else {
			out[i].Name = fmt.Sprintf("%s_%d", base, i)
		}
	}
	return out
}

// DecodeAll decodes every texture in the file.
func (f *File) DecodeAll(workers int) []ctrtex.Decoded {
	return ctrtex.DecodeAll(f.Textures(), workers)
}
