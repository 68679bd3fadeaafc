package cmbtest

import (
	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/cmb"
)

// Stage returns a combiner stage running mode over srcs on both channels.
// Missing sources read Previous; operands pass color and alpha through.
func Stage(mode cmb.CombineMode, srcs ...cmb.Source) cmb.Combiner {
	ch := cmb.CombinerChannel{Mode: mode, Scale: 1}
	for k := 0; k < 3; k++ {
		ch.Sources[k] = cmb.Previous
		if k < len(srcs) {
			ch.Sources[k] = srcs[k]
		}
	}
	c := cmb.Combiner{Color: ch, Alpha: ch}
	c.Color.Operands = [3]cmb.Operand{cmb.OpColor, cmb.OpColor, cmb.OpColor}
	c.Alpha.Operands = [3]cmb.Operand{cmb.OpAlpha, cmb.OpAlpha, cmb.OpAlpha}
	return c
}

// Material returns an untextured material with a single Replace stage of
// the fragment primary color.
func Material() cmb.Material {
	return cmb.Material{
		Diffuse: cmb.Color{255, 255, 255, 255},
		Buffer:  cmb.Color{0, 0, 0, 255},
		Stages:  []cmb.Combiner{Stage(cmb.Replace, cmb.FragmentPrimaryColor)},
	}
}

// Triangle is a two-bone model with one triangle bound to bone 1, which
// sits at (0,1,0) under the root.
func Triangle() Model {
	return Model{
		Name: "triangle",
		Bones: []cmb.Bone{
			{ID: 0, Parent: -1},
			{ID: 1, Parent: 0, Translation: [3]float32{0, 1, 0}},
		},
		Materials: []cmb.Material{Material()},
		Shapes: []Shape{{
			Channels: map[cmb.Channel]Attr{
				cmb.Position: {Type: binreader.Float, Scale: 1, Values: []float64{
					0, 0, 0,
					1, 0, 0,
					0, 0, 1,
				}},
				cmb.Normal: {Type: binreader.Byte, Scale: 1.0 / 127, Values: []float64{
					0, 127, 0,
					0, 127, 0,
					0, 127, 0,
				}},
			},
			Sets: []PrimSet{{Skinning: cmb.Single, BoneTable: []int{1}, Indices: []uint32{0, 1, 2}}},
		}},
		Meshes: []cmb.Mesh{{ShapeIndex: 0, MaterialIndex: 0}},
	}
}
