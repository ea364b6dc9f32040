package gpucore

import "github.com/gogpu/gputypes"

// Resource IDs
//
// These opaque IDs represent host GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// SamplerID is an opaque handle to a sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// ShaderStage identifies the pipeline stage of a shader module.
type ShaderStage uint8

// Shader stages.
const (
	StageVertex ShaderStage = iota
	StageFragment
)

// TextureDescriptor describes a 2D or cube texture.
type TextureDescriptor struct {
	Label     string
	Width     uint32
	Height    uint32
	MipLevels uint32
	// Cube textures have six array layers ordered +X, -X, +Y, -Y, +Z, -Z.
	Cube   bool
	Format gputypes.TextureFormat
	// RenderTarget allows the texture to be a color or depth attachment.
	RenderTarget bool
}

// SamplerDescriptor describes texture sampling state.
// It is comparable and used directly as a cache key.
type SamplerDescriptor struct {
	MagFilter gputypes.FilterMode
	MinFilter gputypes.FilterMode
	MipFilter gputypes.FilterMode
	WrapU     gputypes.AddressMode
	WrapV     gputypes.AddressMode
	LodMin    float32
	LodMax    float32
}

// BufferDescriptor describes a GPU buffer.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// ClearValue is the value written by a texture fill.
// Color applies to color textures, Depth and Stencil to depth textures.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint8
}

// Capabilities report optional host features.
type Capabilities struct {
	// BlendMinMaxFactor is true when min/max blend equations honor factors.
	BlendMinMaxFactor bool
	// FramebufferFetch is true when shaders can read the color attachment.
	FramebufferFetch bool
	// UniformOffsetAlignment is the minimum uniform binding offset alignment.
	UniformOffsetAlignment uint64
	// MaxTextureSize is the largest supported texture dimension.
	MaxTextureSize uint32
}

// BlendState is the color blending slot.
type BlendState struct {
	Enabled bool
	State   gputypes.BlendState
}

// DepthStencilState is the depth and stencil test slot.
type DepthStencilState struct {
	DepthTestEnable   bool
	DepthCompare      gputypes.CompareFunction
	DepthWriteEnable  bool
	StencilTestEnable bool
	StencilCompare    gputypes.CompareFunction
	StencilFailOp     gputypes.StencilOperation
	StencilDepthFail  gputypes.StencilOperation
	StencilPassOp     gputypes.StencilOperation
	StencilReadMask   uint8
	StencilWriteMask  uint8
}

// RasterState is the primitive culling slot.
type RasterState struct {
	CullMode  gputypes.CullMode
	FrontFace gputypes.FrontFace
}

// Viewport is the viewport slot, in scaled framebuffer pixels.
type Viewport struct {
	X, Y          float32
	Width, Height float32
}

// Scissor is the scissor slot.
type Scissor struct {
	Enabled bool
	Rect    Rect
}

// RenderTargets is the framebuffer attachment slot.
type RenderTargets struct {
	Color TextureID
	Depth TextureID
}

// TextureBinding is a sampled texture slot.
type TextureBinding struct {
	Texture TextureID
	Sampler SamplerID
}

// BufferBinding is a uniform or lookup buffer slot.
type BufferBinding struct {
	Buffer BufferID
	Offset uint64
	Size   uint64
}

// MaxVertexAttributes is the number of vertex input locations.
const MaxVertexAttributes = 16

// VertexLayout is the single interleaved vertex buffer layout.
// Attribute i is enabled when bit i of Mask is set.
type VertexLayout struct {
	Stride  uint32
	Mask    uint16
	Formats [MaxVertexAttributes]gputypes.VertexFormat
	Offsets [MaxVertexAttributes]uint32
}

// VertexBufferBinding is the vertex buffer slot.
type VertexBufferBinding struct {
	Buffer BufferID
	Offset uint64
	Layout VertexLayout
}

// IndexBufferBinding is the index buffer slot.
type IndexBufferBinding struct {
	Buffer BufferID
	Offset uint64
	Format gputypes.IndexFormat
}

// Programs is the shader program slot.
type Programs struct {
	Vertex   ShaderModuleID
	Fragment ShaderModuleID
}

// TextureUnit indexes the sampled texture slots.
type TextureUnit uint8

// Texture slots.
const (
	TextureUnit0 TextureUnit = iota
	TextureUnit1
	TextureUnit2
	TextureUnitCube
	NumTextureSlots
)

// ImageSlot indexes the auxiliary image slots read by the fragment shader.
type ImageSlot uint8

// Image slots. The shadow cube faces follow the +X, -X, +Y, -Y, +Z, -Z order.
const (
	ImageShadowPX ImageSlot = iota
	ImageShadowNX
	ImageShadowPY
	ImageShadowNY
	ImageShadowPZ
	ImageShadowNZ
	ImageColorBuffer
	NumImageSlots
)

// BufferSlot indexes the uniform and lookup buffer slots.
type BufferSlot uint8

// Buffer slots.
const (
	BufferVSUniforms BufferSlot = iota
	BufferFSUniforms
	BufferVSPicaUniforms
	BufferLUTLightingFog
	BufferLUTProcTexRG
	BufferLUTProcTexRGBA
	NumBufferSlots
)
