// Package export writes delivered assets as glTF 2.0 documents.
package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/combiner"
	"ctr-asset-decoder/internal/importer"
	"ctr-asset-decoder/internal/logging"
	"ctr-asset-decoder/internal/mathutil"
	"ctr-asset-decoder/internal/mesh"
	"ctr-asset-decoder/internal/skeleton"
	"ctr-asset-decoder/internal/texture"
)

// Writer is an importer.Sink that builds one glTF document. It relies on
// importer.Deliver's order: an asset's images arrive before its models, so
// images are looked up by name among those delivered since the previous
// model.
type Writer struct {
	doc *gltf.Document

	scope      map[string]int // image name -> glTF image
	scopeOpen  bool
	samplers   map[[2]cmb.WrapMode]int
	textures   map[[2]int]int // {image, sampler} -> glTF texture
	models     map[*importer.Model]*modelNodes
	roots      []int
	placements []int
	cube       *int
}

type modelNodes struct {
	root      int
	joints    []int
	skin      *int
	materials map[int]int
	placed    bool
}

var _ importer.Sink = (*Writer)(nil)

// New returns an empty writer.
func New() *Writer {
	return &Writer{
		doc:      gltf.NewDocument(),
		scope:    make(map[string]int),
		samplers: make(map[[2]cmb.WrapMode]int),
		textures: make(map[[2]int]int),
		models:   make(map[*importer.Model]*modelNodes),
	}
}

func (w *Writer) node(n *gltf.Node) int {
	w.doc.Nodes = append(w.doc.Nodes, n)
	return len(w.doc.Nodes) - 1
}

// model returns the nodes of m, creating its root on first use.
func (w *Writer) model(m *importer.Model) *modelNodes {
	if mn, ok := w.models[m]; ok {
		return mn
	}
	w.scopeOpen = false
	mn := &modelNodes{root: w.node(&gltf.Node{Name: m.Name}), materials: make(map[int]int)}
	w.models[m] = mn
	w.roots = append(w.roots, mn.root)
	return mn
}

// AddImage stores the image as an embedded PNG.
func (w *Writer) AddImage(name string, width, height int, rgba []float32) error {
	if !w.scopeOpen {
		w.scope = make(map[string]int)
		w.scopeOpen = true
	}
	if _, ok := w.scope[name]; ok {
		return nil
	}
	var buf bytes.Buffer
	if err := texture.Encode(&buf, texture.FromRGBA(width, height, rgba), texture.PNG); err != nil {
		return err
	}
	idx, err := modeler.WriteImage(w.doc, name+".png", "image/png", &buf)
	if err != nil {
		return err
	}
	w.scope[name] = idx
	return nil
}

// AddSkeleton adds one node per bone under the model root and a skin when
// the model has bones.
func (w *Writer) AddSkeleton(m *importer.Model, bones []cmb.Bone, pose *skeleton.Pose) error {
	mn := w.model(m)
	if len(bones) == 0 {
		return nil
	}
	mn.joints = make([]int, len(bones))
	ibm := make([][4][4]float32, len(bones))
	for i, b := range bones {
		q := mathutil.EulerQuat(b.Rotation)
		mn.joints[i] = w.node(&gltf.Node{
			Name:        fmt.Sprintf("%s_bone%d", m.Name, b.ID),
			Translation: vec3(b.Translation),
			Rotation:    [4]float64{float64(q.V[0]), float64(q.V[1]), float64(q.V[2]), float64(q.W)},
			// Bone scale is reserved; the pose and inverse binds are unscaled.
			Scale: [3]float64{1, 1, 1},
		})
		ibm[i] = columns(pose.InverseBind(i))
		parent := mn.root
		if b.Parent >= 0 {
			parent = mn.joints[b.Parent]
		}
		w.doc.Nodes[parent].Children = append(w.doc.Nodes[parent].Children, mn.joints[i])
	}
	w.doc.Skins = append(w.doc.Skins, &gltf.Skin{
		Name:                m.Name,
		Joints:              mn.joints,
		Skeleton:            gltf.Index(mn.joints[0]),
		InverseBindMatrices: gltf.Index(modeler.WriteAccessor(w.doc, gltf.TargetNone, ibm)),
	})
	mn.skin = gltf.Index(len(w.doc.Skins) - 1)
	return nil
}

// AddMaterial maps the material to a metallic-roughness material. The base
// color texture is the lowest texture unit the combiner reads.
func (w *Writer) AddMaterial(m *importer.Model, index int, mat *cmb.Material, g *combiner.Graph) error {
	mn := w.model(m)
	pbr := &gltf.PBRMetallicRoughness{
		MetallicFactor:  gltf.Float(0),
		RoughnessFactor: gltf.Float(1),
	}
	if tex, uv, ok := w.baseTexture(m, mat, g); ok {
		pbr.BaseColorTexture = &gltf.TextureInfo{Index: tex, TexCoord: uv}
	} else {
		d := mat.Diffuse.Float()
		pbr.BaseColorFactor = &[4]float64{float64(d[0]), float64(d[1]), float64(d[2]), float64(d[3])}
	}
	gm := &gltf.Material{
		Name:                 fmt.Sprintf("%s_mat%d", m.Name, index),
		PBRMetallicRoughness: pbr,
	}
	switch {
	case mat.AlphaTest:
		gm.AlphaMode = gltf.AlphaMask
		gm.AlphaCutoff = gltf.Float(float64(mat.AlphaRef) / 255)
	case mat.BlendMode != 0:
		gm.AlphaMode = gltf.AlphaBlend
	}
	w.doc.Materials = append(w.doc.Materials, gm)
	mn.materials[index] = len(w.doc.Materials) - 1
	return nil
}

func (w *Writer) baseTexture(m *importer.Model, mat *cmb.Material, g *combiner.Graph) (tex, uv int, ok bool) {
	used := g.Uses().Textures
	for unit := range used {
		if !used[unit] || unit >= len(mat.Mappers) {
			continue
		}
		tm := mat.Mappers[unit]
		if tm.TextureID < 0 || tm.TextureID >= len(m.Images) || m.Images[tm.TextureID] < 0 {
			continue
		}
		img, found := w.scope[m.Source.Textures[tm.TextureID].Name]
		if !found {
			continue
		}
		if unit < len(mat.Coords) {
			uv = mat.Coords[unit].UVChannel
		}
		return w.texture(img, [2]cmb.WrapMode{tm.WrapS, tm.WrapT}), uv, true
	}
	return 0, 0, false
}

func (w *Writer) texture(img int, wrap [2]cmb.WrapMode) int {
	s, ok := w.samplers[wrap]
	if !ok {
		w.doc.Samplers = append(w.doc.Samplers, &gltf.Sampler{
			MagFilter: gltf.MagLinear,
			MinFilter: gltf.MinLinear,
			WrapS:     wrapping(wrap[0]),
			WrapT:     wrapping(wrap[1]),
		})
		s = len(w.doc.Samplers) - 1
		w.samplers[wrap] = s
	}
	key := [2]int{img, s}
	if t, ok := w.textures[key]; ok {
		return t
	}
	w.doc.Textures = append(w.doc.Textures, &gltf.Texture{Source: gltf.Index(img), Sampler: gltf.Index(s)})
	w.textures[key] = len(w.doc.Textures) - 1
	return w.textures[key]
}

// wrapping maps PICA wrap modes; glTF has no border color, so clamp to
// border becomes clamp to edge.
func wrapping(m cmb.WrapMode) gltf.WrappingMode {
	switch m {
	case cmb.Repeat:
		return gltf.WrapRepeat
	case cmb.Mirror:
		return gltf.WrapMirroredRepeat
	}
	return gltf.WrapClampToEdge
}

// AddMesh writes one primitive. V is flipped since glTF samples images
// top row first.
func (w *Writer) AddMesh(m *importer.Model, me *mesh.Mesh) error {
	mn := w.model(m)
	if len(me.Triangles) == 0 {
		logging.Logger().Debug("mesh without triangles", "model", m.Name, "mesh", me.Index)
		return nil
	}
	n := me.VertexCount()
	attrs := map[string]int{
		gltf.POSITION: modeler.WritePosition(w.doc, me.Positions),
	}
	if len(me.Normals) == n {
		attrs[gltf.NORMAL] = modeler.WriteNormal(w.doc, me.Normals)
	}
	if len(me.Tangents) == n {
		t := make([][4]float32, n)
		for i, v := range me.Tangents {
			t[i] = [4]float32{v[0], v[1], v[2], 1}
		}
		attrs[gltf.TANGENT] = modeler.WriteTangent(w.doc, t)
	}
	if len(me.Colors) == n {
		attrs[gltf.COLOR_0] = modeler.WriteColor(w.doc, me.Colors)
	}
	for k, uvs := range me.UVs {
		if len(uvs) != n {
			continue
		}
		flipped := make([][2]float32, n)
		for i, uv := range uvs {
			flipped[i] = [2]float32{uv[0], 1 - uv[1]}
		}
		attrs[fmt.Sprintf("TEXCOORD_%d", k)] = modeler.WriteTextureCoord(w.doc, flipped)
	}
	var skin *int
	if mn.skin != nil && len(me.Influences) == n {
		joints, weights := jointsWeights(me.Influences)
		attrs[gltf.JOINTS_0] = modeler.WriteJoints(w.doc, joints)
		attrs[gltf.WEIGHTS_0] = modeler.WriteWeights(w.doc, weights)
		skin = mn.skin
	}

	indices := make([]uint32, 0, 3*len(me.Triangles))
	for _, t := range me.Triangles {
		indices = append(indices, t[0], t[1], t[2])
	}
	prim := &gltf.Primitive{
		Attributes: attrs,
		Indices:    gltf.Index(modeler.WriteIndices(w.doc, indices)),
	}
	if mi, ok := mn.materials[me.MaterialIndex]; ok {
		prim.Material = gltf.Index(mi)
	}
	name := fmt.Sprintf("%s_mesh%d", m.Name, me.Index)
	w.doc.Meshes = append(w.doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	idx := w.node(&gltf.Node{Name: name, Mesh: gltf.Index(len(w.doc.Meshes) - 1), Skin: skin})
	w.doc.Nodes[mn.root].Children = append(w.doc.Nodes[mn.root].Children, idx)
	return nil
}

// jointsWeights keeps the four heaviest influences per vertex, renormalized.
func jointsWeights(infl [][]mesh.Influence) ([][4]uint16, [][4]float32) {
	joints := make([][4]uint16, len(infl))
	weights := make([][4]float32, len(infl))
	for i, vs := range infl {
		vs = append([]mesh.Influence(nil), vs...)
		sort.SliceStable(vs, func(a, b int) bool { return vs[a].Weight > vs[b].Weight })
		var sum float32
		for k := 0; k < len(vs) && k < 4; k++ {
			joints[i][k] = uint16(vs[k].Bone)
			weights[i][k] = vs[k].Weight
			sum += vs[k].Weight
		}
		if sum <= 0 {
			weights[i] = [4]float32{1}
			continue
		}
		for k := range weights[i] {
			weights[i][k] /= sum
		}
	}
	return joints, weights
}

// AddPlacement adds a node at the object's transform holding a copy of each
// model of the placed asset. Objects without a model get a unit cube scaled
// to their bounds.
func (w *Writer) AddPlacement(p *importer.Placement) error {
	name := p.Object.ModelName
	if !p.Object.HasModel() {
		name = fmt.Sprintf("object_room%d", p.Object.RoomNo)
	}
	if p.Asset == nil || len(p.Asset.Models) == 0 {
		idx := w.node(&gltf.Node{Name: name + "_bounds", Matrix: matrix(p.BoundsTransform), Mesh: w.boundsCube()})
		w.placements = append(w.placements, idx)
		return nil
	}
	pn := &gltf.Node{Name: name, Matrix: matrix(p.Transform)}
	idx := w.node(pn)
	for _, m := range p.Asset.Models {
		mn, ok := w.models[m]
		if !ok {
			return fmt.Errorf("export: placement %s: model %s was not delivered", name, m.Name)
		}
		mn.placed = true
		pn.Children = append(pn.Children, w.instance(mn))
	}
	w.placements = append(w.placements, idx)
	return nil
}

// instance deep-copies a model's node tree. Skinned copies get their own
// skin over the copied joints.
func (w *Writer) instance(mn *modelNodes) int {
	copies := make(map[int]int)
	root := w.clone(mn.root, copies)
	if mn.skin == nil {
		return root
	}
	src := w.doc.Skins[*mn.skin]
	skin := &gltf.Skin{
		Name:                src.Name,
		InverseBindMatrices: src.InverseBindMatrices,
		Skeleton:            gltf.Index(copies[*src.Skeleton]),
	}
	for _, j := range src.Joints {
		skin.Joints = append(skin.Joints, copies[j])
	}
	w.doc.Skins = append(w.doc.Skins, skin)
	si := len(w.doc.Skins) - 1
	for _, c := range copies {
		if w.doc.Nodes[c].Skin != nil {
			w.doc.Nodes[c].Skin = gltf.Index(si)
		}
	}
	return root
}

func (w *Writer) clone(n int, copies map[int]int) int {
	src := w.doc.Nodes[n]
	dst := *src
	dst.Children = nil
	idx := w.node(&dst)
	copies[n] = idx
	for _, c := range src.Children {
		child := w.clone(c, copies)
		w.doc.Nodes[idx].Children = append(w.doc.Nodes[idx].Children, child)
	}
	return idx
}

// boundsCube is a shared unit cube centered on the origin.
func (w *Writer) boundsCube() *int {
	if w.cube != nil {
		return w.cube
	}
	pos := make([][3]float32, 0, 8)
	for i := 0; i < 8; i++ {
		pos = append(pos, [3]float32{
			float32(i&1) - 0.5,
			float32(i>>1&1) - 0.5,
			float32(i>>2&1) - 0.5,
		})
	}
	idx := []uint16{
		0, 2, 1, 1, 2, 3, // -z
		4, 5, 6, 5, 7, 6, // +z
		0, 1, 4, 1, 5, 4, // -y
		2, 6, 3, 3, 6, 7, // +y
		0, 4, 2, 2, 4, 6, // -x
		1, 3, 5, 3, 7, 5, // +x
	}
	w.doc.Meshes = append(w.doc.Meshes, &gltf.Mesh{
		Name: "bounds",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{gltf.POSITION: modeler.WritePosition(w.doc, pos)},
			Indices:    gltf.Index(modeler.WriteIndices(w.doc, idx)),
		}},
	})
	w.cube = gltf.Index(len(w.doc.Meshes) - 1)
	return w.cube
}

// Document finalizes the scene and returns the document. Models that were
// only delivered for placements are left out of the scene.
func (w *Writer) Document() *gltf.Document {
	placed := make(map[int]bool)
	for _, mn := range w.models {
		placed[mn.root] = mn.placed
	}
	var nodes []int
	for _, r := range w.roots {
		if !placed[r] {
			nodes = append(nodes, r)
		}
	}
	nodes = append(nodes, w.placements...)
	w.doc.Scenes = []*gltf.Scene{{Nodes: nodes}}
	w.doc.Scene = gltf.Index(0)
	return w.doc
}

// Save writes the document as a .glb when binary is set, otherwise as a
// .gltf with its buffer embedded as a data URI.
func (w *Writer) Save(path string, binary bool) error {
	doc := w.Document()
	if binary {
		if err := gltf.SaveBinary(doc, path); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		return nil
	}
	for _, b := range doc.Buffers {
		b.EmbeddedResource()
	}
	if err := gltf.Save(doc, path); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

func vec3(v [3]float32) [3]float64 {
	return [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}
}

// columns splits a column-major matrix into its columns.
func columns(m mgl32.Mat4) [4][4]float32 {
	var out [4][4]float32
	for c := 0; c < 4; c++ {
		out[c] = [4]float32{m[c*4], m[c*4+1], m[c*4+2], m[c*4+3]}
	}
	return out
}

func matrix(m mgl32.Mat4) [16]float64 {
	var out [16]float64
	for i, v := range m {
		out[i] = float64(v)
	}
	return out
}
