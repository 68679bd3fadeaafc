package main

import (
	"fmt"
	"os"
	"path/filepath"

	"ctr-asset-decoder/internal/ctrtex"
	"ctr-asset-decoder/internal/ctxb"
	"ctr-asset-decoder/internal/gar"
	"ctr-asset-decoder/internal/gseb"
	"ctr-asset-decoder/internal/importer"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: inspect <file.cmb|ctxb|zar|gar|gseb>...")
		os.Exit(2)
	}
	status := 0
	for _, path := range os.Args[1:] {
		if err := inspect(path); err != nil {
			fmt.Printf("Error: %v\n", err)
			status = 1
		}
	}
	os.Exit(status)
}

func inspect(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	kind := importer.DetectKind(path, data)
	fmt.Printf("== %s (%s, %d bytes)\n", filepath.Base(path), kind, len(data))
	switch kind {
	case importer.KindModel:
		return inspectModel(path, data)
	case importer.KindTextures:
		f, err := ctxb.Parse(data)
		if err != nil {
			return err
		}
		for _, c := range f.Chunks {
			fmt.Printf("Chunk %q: %d textures\n", c.Magic, len(c.Textures))
		}
		printTextures(f.Textures())
	case importer.KindArchive:
		return inspectArchive(data)
	case importer.KindScene:
		return inspectScene(data)
	default:
		return importer.ErrUnknownKind
	}
	return nil
}

func printTextures(texs []ctrtex.Texture) {
	for i, t := range texs {
		src := "external"
		if t.Data != nil {
			src = fmt.Sprintf("%d bytes", len(t.Data))
		}
		fmt.Printf("  Texture[%d]: %q %dx%d %s (%s)\n", i, t.Name, t.Width, t.Height, t.Format, src)
	}
}

func inspectModel(path string, data []byte) error {
	a, err := new(importer.Decoder).DecodeBytes(path, data)
	if err != nil {
		return err
	}
	m := a.Models[0]
	src := m.Source
	fmt.Printf("Name: %q, Version: %d, Bones: %d, Materials: %d, Shapes: %d, Meshes: %d\n",
		src.Name, src.Version, len(src.Bones), len(src.Materials), len(src.Shapes), len(src.Meshes))

	for _, b := range src.Bones {
		fmt.Printf("  Bone[%d]: parent=%d T=%.2f R=%.2f S=%.2f\n", b.ID, b.Parent, b.Translation, b.Rotation, b.Scale)
	}

	printTextures(src.Textures)
	for _, f := range a.Failures {
		fmt.Printf("  Skipped %s: %v\n", f.Name, f.Err)
	}

	for i := range src.Materials {
		mat := &src.Materials[i]
		fmt.Printf("  Material[%d]: stages=%d alphaTest=%v ref=%d blend=%d\n",
			i, len(mat.Stages), mat.AlphaTest, mat.AlphaRef, mat.BlendMode)
		for u, mp := range mat.Mappers {
			if mp.TextureID < 0 {
				continue
			}
			fmt.Printf("    Mapper%d: texture=%d wrap=%s/%s\n", u, mp.TextureID, mp.WrapS, mp.WrapT)
		}
		fmt.Printf("    RGBA: %s\n", m.Graphs[i])
	}

	for _, me := range m.Meshes {
		b := me.Bounds()
		fmt.Printf("  Mesh[%d]: shape=%d material=%d verts=%d tris=%d smooth=%v\n",
			me.Index, me.ShapeIndex, me.MaterialIndex, me.VertexCount(), len(me.Triangles), me.Smooth())
		if !b.Empty {
			fmt.Printf("    BBox: X[%.1f, %.1f] Y[%.1f, %.1f] Z[%.1f, %.1f]\n",
				b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
		}
		for n := range me.UVs {
			r, ok := me.UVWrapReport(n)
			if !ok {
				continue
			}
			fmt.Printf("    UV%d: U[%.2f, %.2f] V[%.2f, %.2f] wrapU=%v wrapV=%v\n",
				n, r.Min[0], r.Max[0], r.Min[1], r.Max[1], r.WrapU, r.WrapV)
		}
	}
	return nil
}

func inspectArchive(data []byte) error {
	arc, err := gar.Parse(data)
	if err != nil {
		return err
	}
	if err := gar.Expand(arc, gar.MaxDepth); err != nil {
		return err
	}
	fmt.Printf("Variant: %s, Codename: %q, Groups: %d, Files: %d, Payload: %d bytes\n",
		arc.Variant, arc.Codename, len(arc.Groups), len(arc.Entries), arc.TotalSize())
	for _, g := range arc.Groups {
		fmt.Printf("  Group %q: %d files\n", g.Name, g.FileCount)
	}
	return gar.Walk(arc, func(p string, e *gar.Entry) error {
		fmt.Printf("  %-40s %8d  %s\n", p, e.Size(), e.Kind())
		return nil
	})
}

func inspectScene(data []byte) error {
	tbl, err := gseb.Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("Items: %d, ItemSize: %d, Fields: %d, Rooms: %v\n",
		len(tbl.Objects), tbl.ItemSize, len(tbl.Fields), tbl.Rooms())
	for _, f := range tbl.Fields {
		fmt.Printf("  Field %3d: offset=%d size=%d %s\n", f.ID, f.Offset, f.Size, f.Type)
	}
	for i, o := range tbl.Objects {
		fmt.Printf("  Item[%d]: model=%q room=%d pos=%.1f rot=%.1f bounds=%v\n",
			i, o.ModelName, o.RoomNo, o.Position, o.Rotation, o.Bounds)
	}
	return nil
}
