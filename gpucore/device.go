package gpucore

import "github.com/gogpu/gputypes"

// TextureRegion addresses a rectangle of one mip level and array layer.
type TextureRegion struct {
	Texture TextureID
	Level   uint32
	Layer   uint32
	Rect    Rect
}

// Device abstracts the host graphics API driven by the rasterizer.
//
// The device exposes an immediate-mode binding model: state slots are set
// individually and consumed by the next Draw. Implementations translate the
// slots into backend pipelines and bind groups.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and must not be reused
//
// Binding slots (targets, textures, images, buffers, programs) start at
// their zero value. A zero TextureBinding or image slot samples a 1x1
// transparent black null texture owned by the device.
//
// Pixel data layout for WriteTexture and ReadTexture depends on the texture
// format: RGBA8 for color formats, 16-bit unorm for Depth16Unorm, float32
// for Depth32Float, and for Depth32FloatStencil8 a float32 depth plane
// followed by an 8-bit stencil plane. Rows are tightly packed.
type Device interface {
	// === Capabilities ===

	// Capabilities reports optional host features.
	Capabilities() Capabilities

	// === Textures and samplers ===

	// CreateTexture allocates a texture.
	CreateTexture(desc *TextureDescriptor) (TextureID, error)

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// WriteTexture uploads tightly packed pixels into dst.
	WriteTexture(dst TextureRegion, data []byte) error

	// ReadTexture downloads src. This stalls until the GPU is idle.
	ReadTexture(src TextureRegion) ([]byte, error)

	// CopyTexture copies equally sized regions between textures of the same format.
	CopyTexture(src, dst TextureRegion) error

	// BlitTexture copies src into dst with scaling and an optional vertical flip.
	BlitTexture(src, dst TextureRegion, flipY bool) error

	// FillTexture writes value into every pixel of dst.
	FillTexture(dst TextureRegion, value ClearValue) error

	// CreateSampler creates sampling state.
	CreateSampler(desc *SamplerDescriptor) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// === Buffers ===

	// CreateBuffer allocates a buffer.
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer stages data for upload before the next submission.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// === Shaders ===

	// CreateShaderModule creates a shader module from SPIR-V words.
	CreateShaderModule(stage ShaderStage, spirv []uint32, label string) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// === State slots ===

	SetBlendState(s BlendState)
	SetBlendConstant(c gputypes.Color)
	SetColorWriteMask(m gputypes.ColorWriteMask)
	SetDepthStencilState(s DepthStencilState)
	SetStencilReference(ref uint32)
	SetRasterState(s RasterState)
	SetViewport(v Viewport)
	SetScissor(s Scissor)
	SetRenderTargets(t RenderTargets)
	BindTexture(unit TextureUnit, b TextureBinding)
	BindImage(slot ImageSlot, tex TextureID)
	BindBuffer(slot BufferSlot, b BufferBinding)
	SetVertexBuffer(b VertexBufferBinding)
	SetIndexBuffer(b IndexBufferBinding)
	UsePrograms(p Programs)

	// === Commands ===

	// Draw issues a non-indexed draw with the current slots.
	Draw(topology gputypes.PrimitiveTopology, vertexCount, firstVertex uint32) error

	// DrawIndexed issues an indexed draw with the current slots.
	DrawIndexed(topology gputypes.PrimitiveTopology, indexCount, firstIndex uint32, baseVertex int32) error

	// Barrier makes prior attachment writes visible to subsequent reads.
	Barrier()

	// Destroy releases every resource owned by the device.
	Destroy()
}
