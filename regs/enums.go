package regs

// CullMode selects which triangle winding survives rasterization.
type CullMode uint8

const (
	CullKeepAll CullMode = iota
	CullKeepClockWise
	CullKeepCounterClockWise
)

// BlendEquation is the output merger blend equation.
type BlendEquation uint8

const (
	BlendAdd BlendEquation = iota
	BlendSubtract
	BlendReverseSubtract
	BlendMin
	BlendMax
)

// BlendFactor is a source or destination blend factor.
type BlendFactor uint8

const (
	FactorZero BlendFactor = iota
	FactorOne
	FactorSourceColor
	FactorOneMinusSourceColor
	FactorDestColor
	FactorOneMinusDestColor
	FactorSourceAlpha
	FactorOneMinusSourceAlpha
	FactorDestAlpha
	FactorOneMinusDestAlpha
	FactorConstantColor
	FactorOneMinusConstantColor
	FactorConstantAlpha
	FactorOneMinusConstantAlpha
	FactorSourceAlphaSaturate
)

// LogicOp is the output merger logic operation used when alpha blending is off.
type LogicOp uint8

const (
	LogicClear LogicOp = iota
	LogicAnd
	LogicAndReverse
	LogicCopy
	LogicSet
	LogicCopyInverted
	LogicNoOp
	LogicInvert
	LogicNand
	LogicOr
	LogicNor
	LogicXor
	LogicEquiv
	LogicAndInverted
	LogicOrReverse
	LogicOrInverted
)

// CompareFunc is used by the alpha, depth and stencil tests.
type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareAlways
	CompareEqual
	CompareNotEqual
	CompareLessThan
	CompareLessThanOrEqual
	CompareGreaterThan
	CompareGreaterThanOrEqual
)

// StencilAction is a stencil buffer update.
type StencilAction uint8

const (
	StencilKeep StencilAction = iota
	StencilZero
	StencilReplace
	StencilIncrement
	StencilDecrement
	StencilInvert
	StencilIncrementWrap
	StencilDecrementWrap
)

// FragmentOperationMode selects the output merger behavior.
type FragmentOperationMode uint8

const (
	FragmentOpDefault FragmentOperationMode = 0
	FragmentOpGas     FragmentOperationMode = 1
	FragmentOpShadow  FragmentOperationMode = 3
)

// ColorFormat is a color framebuffer format.
type ColorFormat uint8

const (
	ColorRGBA8 ColorFormat = iota
	ColorRGB8
	ColorRGB5A1
	ColorRGB565
	ColorRGBA4
)

// DepthFormat is a depth/stencil framebuffer format.
type DepthFormat uint8

const (
	DepthD16   DepthFormat = 0
	DepthD24   DepthFormat = 2
	DepthD24S8 DepthFormat = 3
)

// HasStencil reports whether the depth format carries a stencil channel.
func (f DepthFormat) HasStencil() bool { return f == DepthD24S8 }

// TextureFormat is a texture unit pixel format.
type TextureFormat uint8

const (
	TexRGBA8 TextureFormat = iota
	TexRGB8
	TexRGB5A1
	TexRGB565
	TexRGBA4
	TexIA8
	TexRG8
	TexI8
	TexA8
	TexIA4
	TexI4
	TexA4
	TexETC1
	TexETC1A4
)

// TextureType is the sampling mode of a texture unit.
type TextureType uint8

const (
	Texture2D TextureType = iota
	TextureCube
	TextureShadow2D
	TextureProjection2D
	TextureShadowCube
	TextureDisabled
)

// TextureFilter selects nearest or linear filtering.
type TextureFilter uint8

const (
	FilterNearest TextureFilter = iota
	FilterLinear
)

// WrapMode is a texture coordinate wrap mode.
type WrapMode uint8

const (
	WrapClampToEdge WrapMode = iota
	WrapClampToBorder
	WrapRepeat
	WrapMirroredRepeat
	WrapClampToEdge2
	WrapClampToBorder2
	WrapRepeat2
	WrapRepeat3
)

// TriangleTopology is the primitive assembly mode of a draw.
type TriangleTopology uint8

const (
	TopologyList TriangleTopology = iota
	TopologyStrip
	TopologyFan
	// TopologyShader lets the vertex/geometry shader decide primitives.
	TopologyShader
)

// AttributeType is the component type of a vertex attribute.
type AttributeType uint8

const (
	AttribByte AttributeType = iota
	AttribUByte
	AttribShort
	AttribFloat
)

// ElementSize returns the size in bytes of one component.
func (t AttributeType) ElementSize() uint32 {
	switch t {
	case AttribFloat:
		return 4
	case AttribShort:
		return 2
	default:
		return 1
	}
}

// GSUsage tells whether a geometry shader is attached to the pipeline.
type GSUsage uint8

const (
	GSNo  GSUsage = 0
	GSYes GSUsage = 2
)

// GSMode is the geometry shader primitive mode.
type GSMode uint8

const (
	GSPoint GSMode = iota
	GSVariablePrimitive
	GSFixedPrimitive
)

// ScissorMode controls the scissor test.
type ScissorMode uint8

const (
	ScissorDisabled ScissorMode = 0
	ScissorExclude  ScissorMode = 1
	ScissorInclude  ScissorMode = 3
)

// FogMode selects between no fog, depth fog and gas.
type FogMode uint8

const (
	FogNone FogMode = 0
	FogFog  FogMode = 5
	FogGas  FogMode = 7
)

// Semantic names one component of a vertex shader output register.
type Semantic uint8

const (
	SemPositionX Semantic = 0
	SemPositionY Semantic = 1
	SemPositionZ Semantic = 2
	SemPositionW Semantic = 3
	SemQuatX     Semantic = 4
	SemQuatY     Semantic = 5
	SemQuatZ     Semantic = 6
	SemQuatW     Semantic = 7
	SemColorR    Semantic = 8
	SemColorG    Semantic = 9
	SemColorB    Semantic = 10
	SemColorA    Semantic = 11
	SemTex0U     Semantic = 12
	SemTex0V     Semantic = 13
	SemTex1U     Semantic = 14
	SemTex1V     Semantic = 15
	SemTex0W     Semantic = 16
	SemViewX     Semantic = 18
	SemViewY     Semantic = 19
	SemViewZ     Semantic = 20
	SemTex2U     Semantic = 22
	SemTex2V     Semantic = 23
	SemInvalid   Semantic = 31
)

// GPUPixelFormat is the pixel format used by display transfers and the LCD.
type GPUPixelFormat uint8

const (
	GPUPixelRGBA8 GPUPixelFormat = iota
	GPUPixelRGB8
	GPUPixelRGB565
	GPUPixelRGB5A1
	GPUPixelRGBA4
)

// ScalingMode is the downscale filter of a display transfer.
type ScalingMode uint8

const (
	ScaleNone ScalingMode = iota
	ScaleX
	ScaleXY
)
