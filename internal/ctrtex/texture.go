package ctrtex

import (
	"fmt"
	"runtime"
	"sync"
)

// Texture is one image record as stored in CMB and CTXB files.
type Texture struct {
	Name            string
	Width, Height   int
	Levels          int // mip level count, 1 when the record says 0
	Format          Format
	BlockCompressed bool
	Data            []byte
}

// Level0 returns the payload of the base level. Mip chains follow the base
// level in the same payload and are ignored.
func (t *Texture) Level0() []byte {
	n := ExpectedSize(t.Width, t.Height, t.Format)
	if t.Levels > 1 && n > 0 && len(t.Data) > n {
		return t.Data[:n]
	}
	return t.Data
}

// Decode runs the pixel codec over the base level.
func (t *Texture) Decode() ([]float32, error) {
	px, err := Decode(t.Level0(), t.Width, t.Height, t.Format, t.BlockCompressed)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", t.Name, err)
	}
	return px, nil
}

// Decoded pairs a texture with its decode outcome.
type Decoded struct {
	Texture *Texture
	RGBA    []float32
	Err     error
}

// DecodeAll decodes textures on up to workers goroutines. A failure is kept
// on its own entry; siblings still decode. Results keep input order.
func DecodeAll(texs []Texture, workers int) []Decoded {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]Decoded, len(texs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers && w < len(texs); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				px, err := texs[i].Decode()
				out[i] = Decoded{Texture: &texs[i], RGBA: px, Err: err}
			}
		}()
	}
	for i := range texs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}
