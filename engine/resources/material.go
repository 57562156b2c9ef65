package resources

const (
	/** @brief Texture slots per texture source. */
	MaxTextureSlotsPerSource = 6
	/** @brief Texcoord modifiers per slot: Rotate, Turb, Scale, Shift, Scroll. */
	NumTCMods = 5
	/** @brief Color channels: diffuse (Color0) and specular (Color1). */
	NumColors = 2
	/** @brief Values per color channel: A and B. */
	NumColorIndices = 2
	/** @brief Import index written for an unbound slot in cooked data. */
	UnboundImport uint8 = 255
)

/** @brief Categories of texture slots. Only regular textures exist today. */
type TextureSource int

const (
	TextureSourceTexture TextureSource = iota
	NumTextureSources
)

type Sort uint8

const (
	SortSolid Sort = iota
	SortTranslucent
	SortTranslucent2
	SortTranslucent3
	SortTranslucent4
	SortTranslucent5
)

var SortNames = []string{"Solid", "Translucent", "Translucent2", "Translucent3", "Translucent4", "Translucent5"}

func (s Sort) String() string { return enumName(SortNames, uint8(s)) }
func (s Sort) Valid() bool    { return int(s) < len(SortNames) }

type BlendMode uint8

const (
	BlendModeNone BlendMode = iota
	BlendModeAlpha
	BlendModeInvAlpha
	BlendModeAdditive
	BlendModeAddBlend
	BlendModeColorize
	BlendModeInvColorizeD
	BlendModeInvColorizeS
)

var BlendModeNames = []string{"None", "Alpha", "InvAlpha", "Additive", "AddBlend", "Colorize", "InvColorizeD", "InvColorizeS"}

func (b BlendMode) String() string { return enumName(BlendModeNames, uint8(b)) }
func (b BlendMode) Valid() bool    { return int(b) < len(BlendModeNames) }

type DepthFunc uint8

const (
	DepthFuncNone DepthFunc = iota
	DepthFuncLess
	DepthFuncLEqual
	DepthFuncGreater
	DepthFuncGEqual
	DepthFuncEqual
)

var DepthFuncNames = []string{"None", "Less", "LEqual", "Greater", "GEqual", "Equal"}

func (d DepthFunc) String() string { return enumName(DepthFuncNames, uint8(d)) }
func (d DepthFunc) Valid() bool    { return int(d) < len(DepthFuncNames) }

type AlphaTest uint8

const (
	AlphaTestNone AlphaTest = iota
	AlphaTestLess
	AlphaTestLEqual
	AlphaTestGreater
	AlphaTestGEqual
	AlphaTestEqual
)

var AlphaTestNames = []string{"None", "Less", "LEqual", "Greater", "GEqual", "Equal"}

func (a AlphaTest) String() string { return enumName(AlphaTestNames, uint8(a)) }
func (a AlphaTest) Valid() bool    { return int(a) < len(AlphaTestNames) }

type TCGen uint8

const (
	TCGenVertex TCGen = iota
	TCGenEnvMap
)

var TCGenNames = []string{"Vertex", "EnvMap"}

func (g TCGen) String() string { return enumName(TCGenNames, uint8(g)) }
func (g TCGen) Valid() bool    { return int(g) < len(TCGenNames) }

type WaveType uint8

const (
	WaveIdentity WaveType = iota
	WaveConstant
	WaveSquare
	WaveSawtooth
	WaveTriangle
	WaveNoise
)

var WaveTypeNames = []string{"Identity", "Constant", "Square", "Sawtooth", "Triangle", "Noise"}

func (w WaveType) String() string { return enumName(WaveTypeNames, uint8(w)) }
func (w WaveType) Valid() bool    { return int(w) < len(WaveTypeNames) }

/** @brief Names of the texcoord modifiers in slot order. */
var TCModNames = [NumTCMods]string{"Rotate", "Turb", "Scale", "Shift", "Scroll"}

/** @brief Parameters of a periodic animation. */
type WaveAnim struct {
	Type      WaveType
	Amplitude float32
	Freq      float32
	Phase     float32
	Base      float32
}

/** @brief A texture binding of a material. */
type TextureSlot struct {
	/** @brief Global asset id of the texture, -1 when unbound. */
	TextureID       int
	FramesPerSecond float32
	ClampFrames     bool
	TCGen           TCGen
	/** @brief Texcoord modifier waves, [mod][0=S, 1=T]. */
	Mods [NumTCMods][2]WaveAnim
}

/**
 * @brief Everything a renderer needs to bind a material. Produced by either
 * the cooked or the authoring parser, which fill the same shape.
 */
type MaterialDescription struct {
	ShaderID    int
	ShaderName  string
	Procedural  bool
	Sort        Sort
	BlendMode   BlendMode
	DepthFunc   DepthFunc
	AlphaTest   AlphaTest
	AlphaValue  uint8
	DoubleSided bool
	DepthWrite  bool
	Textures    [MaxTextureSlotsPerSource]TextureSlot
	/** @brief Normalized RGBA, [color][index]. */
	Colors     [NumColors][NumColorIndices][4]float32
	ColorWaves [NumColors]WaveAnim
	/** @brief True when any texcoord or color wave is not Identity. */
	Animated bool
}

// NewMaterialDescription returns a description with every slot unbound.
func NewMaterialDescription() *MaterialDescription {
	d := &MaterialDescription{}
	for i := range d.Textures {
		d.Textures[i].TextureID = -1
	}
	return d
}

// HasWaves reports whether any texcoord modifier or color wave animates.
func (d *MaterialDescription) HasWaves() bool {
	for i := range d.Textures {
		for m := 0; m < NumTCMods; m++ {
			if d.Textures[i].Mods[m][0].Type != WaveIdentity || d.Textures[i].Mods[m][1].Type != WaveIdentity {
				return true
			}
		}
	}
	for _, w := range d.ColorWaves {
		if w.Type != WaveIdentity {
			return true
		}
	}
	return false
}
