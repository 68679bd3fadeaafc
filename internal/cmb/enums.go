package cmb

import "fmt"

// SkinningMode selects how a primitive set binds its vertices to bones.
type SkinningMode uint16

const (
	Single SkinningMode = 0 // every vertex on bone table[0]
	Rigid  SkinningMode = 1 // one bone per vertex from the index channel
	Smooth SkinningMode = 2 // weighted blend of up to BoneDimensions bones
)

func (s SkinningMode) String() string {
	switch s {
	case Single:
		return "Single"
	case Rigid:
		return "Rigid"
	case Smooth:
		return "Smooth"
	}
	return fmt.Sprintf("SkinningMode(%d)", uint16(s))
}

func (s SkinningMode) valid() bool { return s <= Smooth }

// CombineMode is the combiner function of one stage channel.
type CombineMode uint16

const (
	Replace         CombineMode = 0x1E01
	Modulate        CombineMode = 0x2100
	Add             CombineMode = 0x0104
	AddSigned       CombineMode = 0x8574
	Interpolate     CombineMode = 0x8575
	Subtract        CombineMode = 0x84E7
	DotProduct3Rgb  CombineMode = 0x86AE
	DotProduct3Rgba CombineMode = 0x86AF
	MultAdd         CombineMode = 0x6401
	AddMult         CombineMode = 0x6402
)

var combineModeNames = map[CombineMode]string{
	Replace:         "Replace",
	Modulate:        "Modulate",
	Add:             "Add",
	AddSigned:       "AddSigned",
	Interpolate:     "Interpolate",
	Subtract:        "Subtract",
	DotProduct3Rgb:  "DotProduct3Rgb",
	DotProduct3Rgba: "DotProduct3Rgba",
	MultAdd:         "MultAdd",
	AddMult:         "AddMult",
}

func (m CombineMode) String() string {
	if s, ok := combineModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("CombineMode(0x%04x)", uint16(m))
}

// Arity is the number of sources the mode reads.
func (m CombineMode) Arity() int {
	switch m {
	case Replace:
		return 1
	case Interpolate, MultAdd, AddMult:
		return 3
	}
	return 2
}

// Source selects a combiner input.
type Source uint16

const (
	Texture0               Source = 0x84C0
	Texture1               Source = 0x84C1
	Texture2               Source = 0x84C2
	Texture3               Source = 0x84C3
	PrimaryColor           Source = 0x8577
	Constant               Source = 0x8576
	Previous               Source = 0x8578
	PreviousBuffer         Source = 0x8579
	FragmentPrimaryColor   Source = 0x6210
	FragmentSecondaryColor Source = 0x6211
)

var sourceNames = map[Source]string{
	Texture0:               "Texture0",
	Texture1:               "Texture1",
	Texture2:               "Texture2",
	Texture3:               "Texture3",
	PrimaryColor:           "PrimaryColor",
	Constant:               "Constant",
	Previous:               "Previous",
	PreviousBuffer:         "PreviousBuffer",
	FragmentPrimaryColor:   "FragmentPrimaryColor",
	FragmentSecondaryColor: "FragmentSecondaryColor",
}

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Source(0x%04x)", uint16(s))
}

// TextureUnit returns the unit for Texture0..3 and false otherwise.
func (s Source) TextureUnit() (int, bool) {
	if s >= Texture0 && s <= Texture3 {
		return int(s - Texture0), true
	}
	return 0, false
}

// Operand selects what part of a source feeds the combiner.
type Operand uint16

const (
	OpColor         Operand = 0x0300
	OpOneMinusColor Operand = 0x0301
	OpAlpha         Operand = 0x0302
	OpOneMinusAlpha Operand = 0x0303
	OpRed           Operand = 0x8580
	OpGreen         Operand = 0x8581
	OpBlue          Operand = 0x8582
	OpOneMinusRed   Operand = 0x8583
	OpOneMinusGreen Operand = 0x8584
	OpOneMinusBlue  Operand = 0x8585
)

var operandNames = map[Operand]string{
	OpColor:         "Color",
	OpOneMinusColor: "OneMinusColor",
	OpAlpha:         "Alpha",
	OpOneMinusAlpha: "OneMinusAlpha",
	OpRed:           "Red",
	OpGreen:         "Green",
	OpBlue:          "Blue",
	OpOneMinusRed:   "OneMinusRed",
	OpOneMinusGreen: "OneMinusGreen",
	OpOneMinusBlue:  "OneMinusBlue",
}

func (o Operand) String() string {
	if n, ok := operandNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Operand(0x%04x)", uint16(o))
}

// Inverted reports whether the operand is a OneMinus variant.
func (o Operand) Inverted() bool {
	switch o {
	case OpOneMinusColor, OpOneMinusAlpha, OpOneMinusRed, OpOneMinusGreen, OpOneMinusBlue:
		return true
	}
	return false
}

// Base strips the OneMinus part.
func (o Operand) Base() Operand {
	switch o {
	case OpOneMinusColor:
		return OpColor
	case OpOneMinusAlpha:
		return OpAlpha
	case OpOneMinusRed:
		return OpRed
	case OpOneMinusGreen:
		return OpGreen
	case OpOneMinusBlue:
		return OpBlue
	}
	return o
}

// WrapMode is a texture mapper's addressing mode.
type WrapMode uint16

const (
	ClampToBorder WrapMode = 0x2900
	Repeat        WrapMode = 0x2901
	ClampToEdge   WrapMode = 0x812F
	Mirror        WrapMode = 0x8370
)

func (w WrapMode) String() string {
	switch w {
	case ClampToBorder:
		return "ClampToBorder"
	case Repeat:
		return "Repeat"
	case ClampToEdge:
		return "ClampToEdge"
	case Mirror:
		return "Mirror"
	}
	return fmt.Sprintf("WrapMode(0x%04x)", uint16(w))
}

func (w WrapMode) valid() bool {
	switch w {
	case ClampToBorder, Repeat, ClampToEdge, Mirror:
		return true
	}
	return false
}

// AttributeMode tells whether a vertex attribute is a stream or a constant.
type AttributeMode uint16

const (
	AttributeArray    AttributeMode = 0
	AttributeConstant AttributeMode = 1
)

func validCombineMode(m CombineMode) bool {
	_, ok := combineModeNames[m]
	return ok
}

func validSource(s Source) bool {
	_, ok := sourceNames[s]
	return ok
}

func validOperand(o Operand) bool {
	_, ok := operandNames[o]
	return ok
}

func validScale(s int) bool { return s == 1 || s == 2 || s == 4 }
