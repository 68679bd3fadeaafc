package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/combiner"
	"ctr-asset-decoder/internal/ctrtex"
	"ctr-asset-decoder/internal/ctxb"
	"ctr-asset-decoder/internal/gar"
	"ctr-asset-decoder/internal/gseb"
	"ctr-asset-decoder/internal/logging"
	"ctr-asset-decoder/internal/mesh"
	"ctr-asset-decoder/internal/skeleton"
)

// ErrUnknownKind is returned for files that are none of the supported kinds.
var ErrUnknownKind = errors.New("unknown file kind")

// Decoder turns files into assets. The zero value decodes textures on every
// CPU and loads the models scene tables refer to.
type Decoder struct {
	// Workers bounds texture decoding per container; <= 0 means NumCPU.
	Workers int
	// SkipSceneModels leaves scene placements bounds-only.
	SkipSceneModels bool
	// MaxDepth bounds nested archives; <= 0 means gar.MaxDepth.
	MaxDepth int
	// RomFS overrides the data root derived from a scene table's path.
	RomFS string
}

// Decode decodes path with a zero Decoder.
func Decode(path string) (*Asset, error) {
	var d Decoder
	return d.Decode(path)
}

// DetectKind picks the decoder by extension, falling back to the magic.
func DetectKind(path string, data []byte) Kind {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "cmb":
		return KindModel
	case "ctxb":
		return KindTextures
	case "zar", "gar":
		return KindArchive
	case "gseb":
		return KindScene
	}
	switch {
	case len(data) >= 4 && string(data[:4]) == cmb.Magic:
		return KindModel
	case len(data) >= 4 && string(data[:4]) == ctxb.Magic:
		return KindTextures
	case gar.IsArchive(data):
		return KindArchive
	}
	return KindUnknown
}

// Decode reads and decodes one file. A returned asset may still carry
// per-texture or per-placement failures.
func (d *Decoder) Decode(path string) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	return d.decode(path, data, make(map[string]*Asset))
}

// DecodeBytes decodes data as if it had been read from path.
func (d *Decoder) DecodeBytes(path string, data []byte) (*Asset, error) {
	return d.decode(path, data, make(map[string]*Asset))
}

func (d *Decoder) decode(path string, data []byte, cache map[string]*Asset) (*Asset, error) {
	a := &Asset{Path: path, Kind: DetectKind(path, data)}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log := logging.Logger().With("file", filepath.Base(path))
	log.Debug("decoding", "kind", a.Kind, "bytes", len(data))

	var err error
	switch a.Kind {
	case KindModel:
		err = d.addModel(a, stem, data)
	case KindTextures:
		err = d.addTextures(a, stem, data)
	case KindArchive:
		err = d.addArchive(a, data)
	case KindScene:
		err = d.addScene(a, path, data, cache)
	default:
		err = ErrUnknownKind
	}
	if err != nil {
		return nil, fmt.Errorf("importer: %s: %w", filepath.Base(path), err)
	}
	log.Debug("decoded", "images", len(a.Images), "models", len(a.Models),
		"placements", len(a.Placements), "failures", len(a.Failures))
	return a, nil
}

// addImages decodes texs and appends the successes; failures are recorded
// and logged but do not stop the asset.
func (d *Decoder) addImages(a *Asset, texs []ctrtex.Texture) []int {
	idx := make([]int, len(texs))
	for i, r := range ctrtex.DecodeAll(texs, d.Workers) {
		idx[i] = -1
		if r.Err != nil {
			logging.Logger().Warn("texture skipped", "texture", r.Texture.Name, "err", r.Err)
			a.Failures = append(a.Failures, Failure{Name: r.Texture.Name, Err: r.Err})
			continue
		}
		idx[i] = len(a.Images)
		a.Images = append(a.Images, Image{
			Name:   r.Texture.Name,
			Width:  r.Texture.Width,
			Height: r.Texture.Height,
			RGBA:   r.RGBA,
			Format: r.Texture.Format,
		})
	}
	return idx
}

func (d *Decoder) addTextures(a *Asset, name string, data []byte) error {
	f, err := ctxb.Parse(data)
	if err != nil {
		return err
	}
	f.Name = name
	d.addImages(a, f.Textures())
	return nil
}

func (d *Decoder) addModel(a *Asset, name string, data []byte) error {
	src, err := cmb.Parse(data)
	if err != nil {
		return err
	}
	if name == "" {
		name = src.Name
	}
	pose, err := skeleton.Resolve(src.Bones)
	if err != nil {
		return err
	}
	meshes, err := mesh.AssembleAll(src, pose)
	if err != nil {
		return err
	}
	m := &Model{Name: name, Source: src, Pose: pose, Meshes: meshes}
	for i := range src.Materials {
		g, err := combiner.Build(&src.Materials[i])
		if err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
		m.Graphs = append(m.Graphs, g)
	}

	m.Images = make([]int, len(src.Textures))
	var embedded []ctrtex.Texture
	var slots []int
	for i, t := range src.Textures {
		if t.Data != nil {
			embedded = append(embedded, t)
			slots = append(slots, i)
			continue
		}
		k, ok := a.ImageIndex(t.Name)
		if !ok {
			logging.Logger().Warn("texture not found", "model", name, "texture", t.Name)
		}
		m.Images[i] = k
	}
	for j, k := range d.addImages(a, embedded) {
		m.Images[slots[j]] = k
	}
	a.Models = append(a.Models, m)
	return nil
}

// addArchive expands nested archives and decodes every texture container
// before any model, so that models can find their textures by name.
func (d *Decoder) addArchive(a *Asset, data []byte) error {
	arc, err := gar.Parse(data)
	if err != nil {
		return err
	}
	if err := gar.Expand(arc, d.MaxDepth); err != nil {
		return err
	}
	for _, e := range arc.TexturesFirst() {
		switch e.Kind() {
		case gar.KindTexture:
			err = d.addTextures(a, e.Name, e.Data)
		case gar.KindModel:
			err = d.addModel(a, e.Name, e.Data)
		default:
			logging.Logger().Debug("entry ignored", "entry", e.FileName, "kind", e.Kind())
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", e.FileName, err)
		}
	}
	return nil
}

func (d *Decoder) addScene(a *Asset, path string, data []byte, cache map[string]*Asset) error {
	tbl, err := gseb.Parse(data)
	if err != nil {
		return err
	}
	res, resErr := gseb.ResolverFor(path)
	if resErr == nil && d.RomFS != "" {
		res.RomFS = d.RomFS
	}
	if resErr != nil && !d.SkipSceneModels {
		logging.Logger().Warn("scene models not resolved", "err", resErr)
	}

	for _, obj := range tbl.Objects {
		p := Placement{
			Object:          obj,
			Transform:       obj.Transform(),
			BoundsTransform: obj.BoundsTransform(),
		}
		if d.SkipSceneModels || resErr != nil || !obj.HasModel() {
			a.Placements = append(a.Placements, p)
			continue
		}
		p.ModelPath, p.Err = res.Resolve(&obj)
		if p.Err == nil {
			p.Asset, p.Err = d.sceneModel(p.ModelPath, cache)
		}
		if p.Err != nil {
			logging.Logger().Warn("placement is bounds only", "object", obj.ModelName, "room", obj.RoomNo, "err", p.Err)
			a.Failures = append(a.Failures, Failure{Name: obj.ModelName, Err: p.Err})
		}
		a.Placements = append(a.Placements, p)
	}
	return nil
}

// sceneModel decodes a referenced model once per scene.
func (d *Decoder) sceneModel(path string, cache map[string]*Asset) (*Asset, error) {
	if a, ok := cache[path]; ok {
		return a, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := d.decode(path, data, cache)
	if err != nil {
		return nil, err
	}
	cache[path] = a
	return a, nil
}
