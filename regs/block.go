package regs

// NumTextureUnits is the number of conventional texture units.
const NumTextureUnits = 3

// NumTevStages is the number of texture combiner stages.
const NumTevStages = 6

// NumLights is the number of fragment light sources.
const NumLights = 8

// MaxAttributes is the number of vertex attribute slots and loaders.
const MaxAttributes = 12

// NumInputRegisters is the number of vertex shader input registers.
const NumInputRegisters = 16

// Block is a snapshot of the fixed-function register state.
type Block struct {
	Rasterizer  RasterizerRegs
	Framebuffer FramebufferRegs
	Texturing   TexturingRegs
	Lighting    LightingRegs
	Pipeline    PipelineRegs
	VS          ShaderRegs
}

// RasterizerRegs hold viewport, clipping, depth mapping and scissor state.
type RasterizerRegs struct {
	CullMode CullMode

	// ViewportSizeX and ViewportSizeY are half of the viewport extent.
	ViewportSizeX   float32
	ViewportSizeY   float32
	ViewportCornerX int32
	ViewportCornerY int32

	ClipEnable bool
	ClipCoef   [4]float32

	DepthMapEnable bool
	DepthScale     float32
	DepthOffset    float32

	Scissor ScissorRegs

	VSOutputTotal      uint32
	VSOutputAttributes [7][4]Semantic
}

// ScissorRegs describe the scissor rectangle in unscaled framebuffer pixels.
type ScissorRegs struct {
	Mode   ScissorMode
	X1, Y1 uint32
	X2, Y2 uint32
}

// FramebufferRegs hold the output merger and render target configuration.
type FramebufferRegs struct {
	OutputMerger OutputMergerRegs

	AllowColorWrite        bool
	AllowDepthStencilWrite bool

	ColorAddr   uint32
	DepthAddr   uint32
	Width       uint32
	Height      uint32
	ColorFormat ColorFormat
	DepthFormat DepthFormat

	ShadowConstant float32
	ShadowLinear   float32
}

// IsShadowRendering reports whether the output merger writes shadow maps.
func (f *FramebufferRegs) IsShadowRendering() bool {
	return f.OutputMerger.FragmentOperationMode == FragmentOpShadow
}

// HasStencil reports whether the depth buffer carries stencil.
func (f *FramebufferRegs) HasStencil() bool { return f.DepthFormat.HasStencil() }

// OutputMergerRegs hold blending, logic op and per-fragment tests.
type OutputMergerRegs struct {
	FragmentOperationMode FragmentOperationMode

	AlphaBlendEnable bool
	ColorEquation    BlendEquation
	AlphaEquation    BlendEquation
	ColorSrc         BlendFactor
	ColorDst         BlendFactor
	AlphaSrc         BlendFactor
	AlphaDst         BlendFactor
	BlendConst       [4]uint8
	LogicOp          LogicOp

	AlphaTestEnable bool
	AlphaTestFunc   CompareFunc
	AlphaTestRef    uint8

	StencilEnable    bool
	StencilFunc      CompareFunc
	StencilWriteMask uint8
	StencilRef       uint8
	StencilInputMask uint8
	StencilFail      StencilAction
	StencilZFail     StencilAction
	StencilZPass     StencilAction

	DepthTestEnable  bool
	DepthFunc        CompareFunc
	RedEnable        bool
	GreenEnable      bool
	BlueEnable       bool
	AlphaEnable      bool
	DepthWriteEnable bool
}

// TexturingRegs hold texture units, procedural texture, fog and combiners.
type TexturingRegs struct {
	Texture0Enable    bool
	Texture1Enable    bool
	Texture2Enable    bool
	Texture3Enable    bool
	Texture3Coords    uint8
	Texture2UseCoord1 bool

	Units [NumTextureUnits]TextureUnit

	// Cube face addresses; the positive X face lives in Units[0].Config.Addr.
	CubeAddrNX uint32
	CubeAddrPY uint32
	CubeAddrNY uint32
	CubeAddrPZ uint32
	CubeAddrNZ uint32

	ProcTex ProcTexRegs

	FogMode  FogMode
	FogFlip  bool
	FogColor [3]uint8

	TevStages          [NumTevStages]TevStage
	CombinerBufferInit [4]uint8
	UpdateBufferRGB    [4]bool
	UpdateBufferAlpha  [4]bool
}

// Enabled reports whether unit i samples a texture.
func (t *TexturingRegs) Enabled(i int) bool {
	switch i {
	case 0:
		return t.Texture0Enable
	case 1:
		return t.Texture1Enable
	case 2:
		return t.Texture2Enable
	}
	return false
}

// TextureUnit pairs a texture config with its pixel format.
type TextureUnit struct {
	Config TextureConfig
	Format TextureFormat
}

// TextureConfig describes the image sampled by a texture unit.
type TextureConfig struct {
	Type        TextureType
	Addr        uint32
	Width       uint32
	Height      uint32
	BorderColor [4]uint8
	MagFilter   TextureFilter
	MinFilter   TextureFilter
	MipFilter   TextureFilter
	WrapS       WrapMode
	WrapT       WrapMode
	LodMin      uint32
	LodMax      uint32
	LodBias     float32
	ShadowBias  uint32
	ShadowPersp bool
}

// ProcTexRegs describe the procedural texture unit.
type ProcTexRegs struct {
	NoiseEnable    bool
	UClamp         uint8
	VClamp         uint8
	ColorCombiner  uint8
	AlphaCombiner  uint8
	SeparateAlpha  bool
	NoiseU         ProcTexNoise
	NoiseV         ProcTexNoise
	LUTWidth       uint32
	LUTOffset      uint32
	LUTFilter      uint8
	Bias           float32
	ShiftU, ShiftV uint8
}

// ProcTexNoise is the noise generator configuration for one axis.
type ProcTexNoise struct {
	Amplitude float32
	Frequency float32
	Phase     float32
}

// TevSource is a texture combiner input.
type TevSource uint8

const (
	SrcPrimaryColor           TevSource = 0x0
	SrcPrimaryFragmentColor   TevSource = 0x1
	SrcSecondaryFragmentColor TevSource = 0x2
	SrcTexture0               TevSource = 0x3
	SrcTexture1               TevSource = 0x4
	SrcTexture2               TevSource = 0x5
	SrcTexture3               TevSource = 0x6
	SrcPreviousBuffer         TevSource = 0xd
	SrcConstant               TevSource = 0xe
	SrcPrevious               TevSource = 0xf
)

// ColorModifier selects channels from a color combiner input.
type ColorModifier uint8

const (
	ColorModSourceColor         ColorModifier = 0
	ColorModOneMinusSourceColor ColorModifier = 1
	ColorModSourceAlpha         ColorModifier = 2
	ColorModOneMinusSourceAlpha ColorModifier = 3
	ColorModSourceRed           ColorModifier = 4
	ColorModOneMinusSourceRed   ColorModifier = 5
	ColorModSourceGreen         ColorModifier = 8
	ColorModOneMinusSourceGreen ColorModifier = 9
	ColorModSourceBlue          ColorModifier = 12
	ColorModOneMinusSourceBlue  ColorModifier = 13
)

// AlphaModifier selects a channel from an alpha combiner input.
type AlphaModifier uint8

const (
	AlphaModSourceAlpha AlphaModifier = iota
	AlphaModOneMinusSourceAlpha
	AlphaModSourceRed
	AlphaModOneMinusSourceRed
	AlphaModSourceGreen
	AlphaModOneMinusSourceGreen
	AlphaModSourceBlue
	AlphaModOneMinusSourceBlue
)

// TevOp is a texture combiner operation.
type TevOp uint8

const (
	OpReplace TevOp = iota
	OpModulate
	OpAdd
	OpAddSigned
	OpLerp
	OpSubtract
	OpDot3RGB
	OpDot3RGBA
	OpMultiplyThenAdd
	OpAddThenMultiply
)

// TevStage is one texture combiner stage.
type TevStage struct {
	ColorSource   [3]TevSource
	AlphaSource   [3]TevSource
	ColorModifier [3]ColorModifier
	AlphaModifier [3]AlphaModifier
	ColorOp       TevOp
	AlphaOp       TevOp
	ConstColor    [4]uint8
	// ColorScale and AlphaScale are shift amounts: 0 = 1x, 1 = 2x, 2 = 4x.
	ColorScale uint8
	AlphaScale uint8
}

// IsPassThrough reports whether the stage forwards the previous result unchanged.
func (s *TevStage) IsPassThrough() bool {
	return s.ColorOp == OpReplace && s.AlphaOp == OpReplace &&
		s.ColorSource[0] == SrcPrevious && s.AlphaSource[0] == SrcPrevious &&
		s.ColorModifier[0] == ColorModSourceColor && s.AlphaModifier[0] == AlphaModSourceAlpha &&
		s.ColorScale == 0 && s.AlphaScale == 0
}

// LightingInput selects the value used to index a lighting LUT.
type LightingInput uint8

const (
	LightInputNH LightingInput = iota
	LightInputVH
	LightInputNV
	LightInputLN
)

// LightingRegs hold the subset of fragment lighting state the shaders use.
type LightingRegs struct {
	Disable         bool
	NumLights       uint32
	LightEnable     [NumLights]uint8
	Lights          [NumLights]LightSource
	GlobalAmbient   [3]uint8
	ClampHighlights bool

	D0Enable bool
	D0Input  LightingInput
	D0Abs    bool
	D0Scale  float32
	D1Enable bool
	D1Input  LightingInput
	D1Abs    bool
	D1Scale  float32
}

// LightSource is one fragment light.
type LightSource struct {
	Specular0       [3]uint8
	Specular1       [3]uint8
	Diffuse         [3]uint8
	Ambient         [3]uint8
	Position        [3]float32
	Directional     bool
	TwoSided        bool
	DistAttenEnable bool
	DistAttenBias   float32
	DistAttenScale  float32
}

// AttributeFormat is the component type and count of one vertex attribute.
type AttributeFormat struct {
	Type AttributeType
	// Size is the component count, 1..4.
	Size uint32
}

// AttributeLoader streams a group of interleaved attributes.
type AttributeLoader struct {
	DataOffset     uint32
	ByteCount      uint32
	ComponentCount uint32
	// Components lists attribute indices (< 12) or padding codes (12..15).
	Components [12]uint8
}

// VertexAttributes describe the attribute buffers of the current draw.
type VertexAttributes struct {
	BaseAddress uint32
	Formats     [MaxAttributes]AttributeFormat
	Loaders     [MaxAttributes]AttributeLoader
	// FixedMask has bit i set when attribute i uses its default value.
	FixedMask uint16
	// NumAttributes is the number of active attribute slots.
	NumAttributes uint32
}

// IsDefault reports whether attribute i is fixed to its default value.
func (v *VertexAttributes) IsDefault(i int) bool {
	return v.FixedMask&(1<<uint(i)) != 0
}

// PipelineRegs hold primitive assembly and attribute streaming state.
type PipelineRegs struct {
	VertexAttributes VertexAttributes

	IndexOffset   uint32
	IndexFormat16 bool
	NumVertices   uint32
	VertexOffset  uint32
	Topology      TriangleTopology
	UseGS         GSUsage
	GSMode        GSMode

	// DefaultAttributes are the fixed values of vertex shader input registers.
	DefaultAttributes [NumInputRegisters][4]float32
}

// ShaderRegs hold the vertex shader unit configuration.
type ShaderRegs struct {
	// InputRegisterMap maps attribute index to input register.
	InputRegisterMap [NumInputRegisters]uint8
	EntryPoint       uint32
	OutputMask       uint16
	BoolUniforms     uint16
	IntUniforms      [4][4]uint8
}

// RegisterForAttribute returns the input register fed by attribute i.
func (s *ShaderRegs) RegisterForAttribute(i int) int {
	return int(s.InputRegisterMap[i] & 0xf)
}
