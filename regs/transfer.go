package regs

// MemoryFillConfig describes a GPU memory fill request.
type MemoryFillConfig struct {
	StartAddr uint32
	EndAddr   uint32
	Value32   uint32
	Fill24Bit bool
	Fill32Bit bool
}

// FillWidth returns the fill pattern width in bytes.
func (c *MemoryFillConfig) FillWidth() uint32 {
	switch {
	case c.Fill32Bit:
		return 4
	case c.Fill24Bit:
		return 3
	default:
		return 2
	}
}

// DisplayTransferConfig describes a display transfer or texture copy.
type DisplayTransferConfig struct {
	InputAddr    uint32
	OutputAddr   uint32
	InputWidth   uint32
	InputHeight  uint32
	OutputWidth  uint32
	OutputHeight uint32
	InputFormat  GPUPixelFormat
	OutputFormat GPUPixelFormat

	InputLinear    bool
	DontSwizzle    bool
	FlipVertically bool
	Scaling        ScalingMode
	IsTextureCopy  bool

	// Texture copy parameters, in bytes.
	CopySize        uint32
	CopyInputWidth  uint32
	CopyInputGap    uint32
	CopyOutputWidth uint32
	CopyOutputGap   uint32
}

// FramebufferConfig describes an LCD framebuffer.
type FramebufferConfig struct {
	Width  uint32
	Height uint32
	Format GPUPixelFormat
}
