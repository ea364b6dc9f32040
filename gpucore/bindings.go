package gpucore

// Binding model shared by generated shaders and devices.
//
// Group 0 holds the buffer slots, binding = BufferSlot. The first three are
// uniform buffers, the lookup table slots are read-only storage buffers.
// Group 1 holds texture units as texture/sampler binding pairs followed by
// the image slots, which are read with textureLoad. Vertex attribute i is
// at location i in Float32x4 format.
const (
	BindGroupBuffers  = 0
	BindGroupTextures = 1
)

// IsStorage reports whether the slot is bound as a storage buffer.
func (s BufferSlot) IsStorage() bool { return s >= BufferLUTLightingFog }

// TextureBindingIndex returns the binding of a unit's texture.
func TextureBindingIndex(u TextureUnit) uint32 { return uint32(u) * 2 }

// SamplerBindingIndex returns the binding of a unit's sampler.
func SamplerBindingIndex(u TextureUnit) uint32 { return uint32(u)*2 + 1 }

// ImageBindingIndex returns the binding of an image slot.
func ImageBindingIndex(s ImageSlot) uint32 { return uint32(NumTextureSlots)*2 + uint32(s) }
