// Package skeleton resolves bone hierarchies into bind-pose matrices.
package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/mathutil"
)

// Pose holds the bind-pose transforms of a skeleton, indexed by bone id.
type Pose struct {
	bones  []cmb.Bone
	local  []mgl32.Mat4
	world  []mgl32.Mat4
	normal []mgl32.Mat3
}

// Resolve computes local and world matrices for every bone.
// local = T(translation) · Rz · Ry · Rx and world[i] = world[parent] · local[i].
// Bones must be ordered so that every parent precedes its children.
func Resolve(bones []cmb.Bone) (*Pose, error) {
	p := &Pose{
		bones:  bones,
		local:  make([]mgl32.Mat4, len(bones)),
		world:  make([]mgl32.Mat4, len(bones)),
		normal: make([]mgl32.Mat3, len(bones)),
	}
	for i, b := range bones {
		if b.ID != i {
			return nil, fmt.Errorf("skeleton: bone %d has id %d: %w", i, b.ID, cmb.ErrCorruptModel)
		}
		if b.Parent >= i {
			return nil, fmt.Errorf("skeleton: bone %d references parent %d: %w", i, b.Parent, cmb.ErrCorruptModel)
		}
		p.local[i] = mathutil.Compose(b.Translation, b.Rotation)
		if b.Parent < 0 {
			p.world[i] = p.local[i]
		} else {
			p.world[i] = p.world[b.Parent].Mul4(p.local[i])
		}
		p.normal[i] = mathutil.NormalMatrix(p.world[i])
	}
	return p, nil
}

// Len is the number of bones.
func (p *Pose) Len() int { return len(p.bones) }

// Bone returns the source record of bone id.
func (p *Pose) Bone(id int) cmb.Bone { return p.bones[id] }

func (p *Pose) Local(id int) mgl32.Mat4 { return p.local[id] }

func (p *Pose) World(id int) mgl32.Mat4 { return p.world[id] }

// InverseBind maps model space into the bone's space.
func (p *Pose) InverseBind(id int) mgl32.Mat4 { return p.world[id].Inv() }

// Tail is the bone's translation carried into model space by its parent,
// i.e. the joint position. Roots return their translation unchanged.
func (p *Pose) Tail(id int) [3]float32 {
	b := p.bones[id]
	if b.Parent < 0 {
		return b.Translation
	}
	return mathutil.TransformPoint(p.world[b.Parent], b.Translation)
}

// Children lists the direct children of id in id order.
func (p *Pose) Children(id int) []int {
	var out []int
	for i := id + 1; i < len(p.bones); i++ {
		if p.bones[i].Parent == id {
			out = append(out, i)
		}
	}
	return out
}

// TransformPoint moves v from bone space into model space.
func (p *Pose) TransformPoint(id int, v [3]float32) [3]float32 {
	return mathutil.TransformPoint(p.world[id], v)
}

// TransformNormal moves n from bone space into model space using the
// inverse-transpose of the bone's world matrix.
func (p *Pose) TransformNormal(id int, n [3]float32) [3]float32 {
	return mathutil.TransformNormal(p.normal[id], n)
}
