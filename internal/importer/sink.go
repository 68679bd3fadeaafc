package importer

import (
	"fmt"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/combiner"
	"ctr-asset-decoder/internal/mesh"
	"ctr-asset-decoder/internal/skeleton"
)

// SkeletonSink accepts one bone table with its resolved pose per model.
type SkeletonSink interface {
	AddSkeleton(model *Model, bones []cmb.Bone, pose *skeleton.Pose) error
}

// ImageSink accepts decoded textures.
type ImageSink interface {
	AddImage(name string, width, height int, rgba []float32) error
}

// MeshSink accepts assembled meshes.
type MeshSink interface {
	AddMesh(model *Model, m *mesh.Mesh) error
}

// MaterialSink accepts materials with their combiner graph.
type MaterialSink interface {
	AddMaterial(model *Model, index int, mat *cmb.Material, g *combiner.Graph) error
}

// PlacementSink accepts scene objects.
type PlacementSink interface {
	AddPlacement(p *Placement) error
}

// Sink is a host that takes everything.
type Sink interface {
	SkeletonSink
	ImageSink
	MeshSink
	MaterialSink
	PlacementSink
}

// Deliver hands a to sink from a single goroutine: images first, then per
// model its skeleton, materials and meshes, then placements. Sink may
// implement any subset of the sink interfaces; the rest is skipped. Scene
// models are delivered once, before the first placement that uses them.
func Deliver(a *Asset, sink any) error {
	return deliver(a, sink, make(map[*Asset]bool))
}

func deliver(a *Asset, sink any, done map[*Asset]bool) error {
	if done[a] {
		return nil
	}
	done[a] = true

	if s, ok := sink.(ImageSink); ok {
		for _, im := range a.Images {
			if err := s.AddImage(im.Name, im.Width, im.Height, im.RGBA); err != nil {
				return fmt.Errorf("image %s: %w", im.Name, err)
			}
		}
	}
	for _, m := range a.Models {
		if err := deliverModel(m, sink); err != nil {
			return fmt.Errorf("model %s: %w", m.Name, err)
		}
	}
	ps, _ := sink.(PlacementSink)
	for i := range a.Placements {
		p := &a.Placements[i]
		if p.Asset != nil {
			if err := deliver(p.Asset, sink, done); err != nil {
				return err
			}
		}
		if ps != nil {
			if err := ps.AddPlacement(p); err != nil {
				return fmt.Errorf("placement %s: %w", p.Object.ModelName, err)
			}
		}
	}
	return nil
}

func deliverModel(m *Model, sink any) error {
	if s, ok := sink.(SkeletonSink); ok {
		if err := s.AddSkeleton(m, m.Source.Bones, m.Pose); err != nil {
			return err
		}
	}
	if s, ok := sink.(MaterialSink); ok {
		for i := range m.Source.Materials {
			if err := s.AddMaterial(m, i, &m.Source.Materials[i], m.Graphs[i]); err != nil {
				return fmt.Errorf("material %d: %w", i, err)
			}
		}
	}
	if s, ok := sink.(MeshSink); ok {
		for _, me := range m.Meshes {
			if err := s.AddMesh(m, me); err != nil {
				return fmt.Errorf("mesh %d: %w", me.Index, err)
			}
		}
	}
	return nil
}
