// Package importer decodes one input file of any supported kind into an
// Asset and hands assets to host sinks.
package importer

import (
	"github.com/go-gl/mathgl/mgl32"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/combiner"
	"ctr-asset-decoder/internal/ctrtex"
	"ctr-asset-decoder/internal/gseb"
	"ctr-asset-decoder/internal/mesh"
	"ctr-asset-decoder/internal/skeleton"
)

// Kind is the detected input type.
type Kind int

const (
	KindUnknown Kind = iota
	KindModel
	KindTextures
	KindArchive
	KindScene
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "cmb"
	case KindTextures:
		return "ctxb"
	case KindArchive:
		return "archive"
	case KindScene:
		return "gseb"
	}
	return "unknown"
}

// Image is a decoded texture.
type Image struct {
	Name          string
	Width, Height int
	RGBA          []float32 // top row first
	Format        ctrtex.Format
}

// Model is a decoded CMB with everything a host needs to build it.
type Model struct {
	Name   string
	Source *cmb.Model
	Pose   *skeleton.Pose
	Meshes []*mesh.Mesh
	Graphs []*combiner.Graph // one per material
	// Images maps the model's texture table to Asset.Images; -1 marks a
	// texture that was neither embedded nor decoded earlier.
	Images []int
}

// Placement is one scene object, with its model when it resolved.
type Placement struct {
	Object          gseb.Object
	ModelPath       string
	Asset           *Asset // decoded model file, nil for bounds-only objects
	Transform       mgl32.Mat4
	BoundsTransform mgl32.Mat4
	Err             error // why the model is missing
}

// Failure is a non-fatal problem inside an asset, such as one corrupt
// texture among many.
type Failure struct {
	Name string
	Err  error
}

// Asset is everything decoded from one input file.
type Asset struct {
	Path       string
	Kind       Kind
	Images     []Image
	Models     []*Model
	Placements []Placement
	Failures   []Failure
}

// ImageIndex returns the first image called name.
func (a *Asset) ImageIndex(name string) (int, bool) {
	for i := range a.Images {
		if a.Images[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Stats counts what an asset holds.
type Stats struct {
	Images     int
	Models     int
	Meshes     int
	Vertices   int
	Triangles  int
	Placements int
	Failures   int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Images += o.Images
	s.Models += o.Models
	s.Meshes += o.Meshes
	s.Vertices += o.Vertices
	s.Triangles += o.Triangles
	s.Placements += o.Placements
	s.Failures += o.Failures
}

func (a *Asset) Stats() Stats {
	s := Stats{
		Images:     len(a.Images),
		Models:     len(a.Models),
		Placements: len(a.Placements),
		Failures:   len(a.Failures),
	}
	for _, m := range a.Models {
		s.Meshes += len(m.Meshes)
		for _, me := range m.Meshes {
			s.Vertices += me.VertexCount()
			s.Triangles += len(me.Triangles)
		}
	}
	for _, p := range a.Placements {
		if p.Asset != nil {
			sub := p.Asset.Stats()
			sub.Placements = 0
			s.Add(sub)
		}
	}
	return s
}
