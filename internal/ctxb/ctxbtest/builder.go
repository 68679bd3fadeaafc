// Package ctxbtest assembles CTXB containers in memory for tests.
package ctxbtest

import (
	"encoding/binary"

	"ctr-asset-decoder/internal/ctrtex"
)

// Texture is one record of the single "tex " chunk Build writes.
type Texture struct {
	Name          string
	Width, Height int
	Format        ctrtex.Format
	Data          []byte
}

const headerSize = 24

// Build lays out the header, one chunk of 36-byte records and the payloads.
func Build(texs []Texture) []byte {
	chunkSize := 12 + 36*len(texs)
	dataOff := headerSize + chunkSize

	var payload []byte
	b := make([]byte, dataOff)
	copy(b, "ctxb")
	binary.LittleEndian.PutUint32(b[8:], 1)
	binary.LittleEndian.PutUint32(b[16:], headerSize)
	binary.LittleEndian.PutUint32(b[20:], uint32(dataOff))

	c := b[headerSize:]
	copy(c, "tex ")
	binary.LittleEndian.PutUint32(c[4:], uint32(chunkSize))
	binary.LittleEndian.PutUint32(c[8:], uint32(len(texs)))
	for i, t := range texs {
		rec := c[12+36*i:]
		binary.LittleEndian.PutUint32(rec[0:], uint32(len(t.Data)))
		binary.LittleEndian.PutUint16(rec[4:], 1)
		binary.LittleEndian.PutUint16(rec[8:], uint16(t.Width))
		binary.LittleEndian.PutUint16(rec[10:], uint16(t.Height))
		binary.LittleEndian.PutUint32(rec[12:], uint32(t.Format))
		binary.LittleEndian.PutUint32(rec[16:], uint32(len(payload)))
		copy(rec[20:36], t.Name)
		payload = append(payload, t.Data...)
	}
	b = append(b, payload...)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	return b
}

// Gray returns an 8×8 L8 texture filled with v.
func Gray(name string, v byte) Texture {
	px := make([]byte, 64)
	for i := range px {
		px[i] = v
	}
	return Texture{Name: name, Width: 8, Height: 8, Format: ctrtex.L8, Data: px}
}
