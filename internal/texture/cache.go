package texture

import (
	"image"
	"sync"

	"ctr-asset-decoder/internal/importer"
)

// Resolver maps an index into an asset's image list to an NRGBA image.
type Resolver interface {
	Resolve(index int) *image.NRGBA
}

// Cache converts an asset's decoded images on first use and is safe for
// concurrent readers.
type Cache struct {
	mu     sync.RWMutex
	items  map[int]*image.NRGBA
	images []importer.Image
}

// NewCache creates a cache over images.
func NewCache(images []importer.Image) *Cache {
	return &Cache{
		items:  make(map[int]*image.NRGBA),
		images: images,
	}
}

// Resolve returns image index, or nil when index is out of range.
func (c *Cache) Resolve(index int) *image.NRGBA {
	if index < 0 || index >= len(c.images) {
		return nil
	}

	c.mu.RLock()
	if img, ok := c.items[index]; ok {
		c.mu.RUnlock()
		return img
	}
	c.mu.RUnlock()

	im := &c.images[index]
	img := FromRGBA(im.Width, im.Height, im.RGBA)

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.items[index]; ok {
		return prev
	}
	c.items[index] = img
	return img
}

// Len is the number of images behind the cache.
func (c *Cache) Len() int { return len(c.images) }
