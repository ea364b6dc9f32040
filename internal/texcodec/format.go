// Package texcodec converts between guest pixel layouts and host uploads.
//
// Guest images are stored either linearly or in 8x8 tiles whose pixels are
// Morton ordered. Host uploads are always linear and top-down: RGBA8 for
// color and texture formats, 16-bit unorm for D16, float32 for D24, and a
// float32 depth plane followed by an 8-bit stencil plane for D24S8.
package texcodec

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/regs"
)

// PixelFormat enumerates every guest surface format.
// Values 0..13 match regs.TextureFormat.
type PixelFormat uint8

const (
	RGBA8 PixelFormat = iota
	RGB8
	RGB5A1
	RGB565
	RGBA4
	IA8
	RG8
	I8
	A8
	IA4
	I4
	A4
	ETC1
	ETC1A4
	D16   PixelFormat = 14
	D24   PixelFormat = 16
	D24S8 PixelFormat = 17

	Invalid PixelFormat = 255
)

var formatNames = map[PixelFormat]string{
	RGBA8: "RGBA8", RGB8: "RGB8", RGB5A1: "RGB5A1", RGB565: "RGB565", RGBA4: "RGBA4",
	IA8: "IA8", RG8: "RG8", I8: "I8", A8: "A8", IA4: "IA4", I4: "I4", A4: "A4",
	ETC1: "ETC1", ETC1A4: "ETC1A4", D16: "D16", D24: "D24", D24S8: "D24S8",
}

func (f PixelFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "Invalid"
}

// SurfaceType groups formats by what they can be used for.
type SurfaceType uint8

const (
	TypeColor SurfaceType = iota
	TypeTexture
	TypeDepth
	TypeDepthStencil
	TypeInvalid
)

// Type returns the surface class of f. Framebuffer color formats are
// TypeColor, the remaining sampled formats TypeTexture.
func (f PixelFormat) Type() SurfaceType {
	switch {
	case f <= RGBA4:
		return TypeColor
	case f <= ETC1A4:
		return TypeTexture
	case f == D16 || f == D24:
		return TypeDepth
	case f == D24S8:
		return TypeDepthStencil
	}
	return TypeInvalid
}

// IsDepth reports whether f is a depth or depth/stencil format.
func (f PixelFormat) IsDepth() bool {
	t := f.Type()
	return t == TypeDepth || t == TypeDepthStencil
}

// IsCompressed reports whether f is block compressed.
func (f PixelFormat) IsCompressed() bool { return f == ETC1 || f == ETC1A4 }

// BitsPerPixel returns the guest storage size of one pixel.
func (f PixelFormat) BitsPerPixel() uint32 {
	switch f {
	case RGBA8, D24S8:
		return 32
	case RGB8, D24:
		return 24
	case RGB5A1, RGB565, RGBA4, IA8, RG8, D16:
		return 16
	case I8, A8, IA4, ETC1A4:
		return 8
	case I4, A4, ETC1:
		return 4
	}
	return 0
}

// BytesPerPixel returns the guest pixel size rounded up to whole bytes.
func (f PixelFormat) BytesPerPixel() uint32 {
	return (f.BitsPerPixel() + 7) / 8
}

// GuestSize returns the number of guest bytes of a w x h image.
func (f PixelFormat) GuestSize(w, h uint32) uint32 {
	return w * h * f.BitsPerPixel() / 8
}

// HostFormat returns the host texture format used to store f.
func (f PixelFormat) HostFormat() gputypes.TextureFormat {
	switch f {
	case D16:
		return gputypes.TextureFormatDepth16Unorm
	case D24:
		return gputypes.TextureFormatDepth32Float
	case D24S8:
		return gputypes.TextureFormatDepth32FloatStencil8
	}
	return gputypes.TextureFormatRGBA8Unorm
}

// HostBytesPerPixel returns the size of one pixel in the host upload layout.
func (f PixelFormat) HostBytesPerPixel() uint32 {
	switch f {
	case D16:
		return 2
	case D24S8:
		return 5
	}
	return 4
}

// FromTexture converts a texture unit format.
func FromTexture(f regs.TextureFormat) PixelFormat {
	if f > regs.TexETC1A4 {
		return Invalid
	}
	return PixelFormat(f)
}

// FromColor converts a color framebuffer format.
func FromColor(f regs.ColorFormat) PixelFormat {
	switch f {
	case regs.ColorRGBA8:
		return RGBA8
	case regs.ColorRGB8:
		return RGB8
	case regs.ColorRGB5A1:
		return RGB5A1
	case regs.ColorRGB565:
		return RGB565
	case regs.ColorRGBA4:
		return RGBA4
	}
	return Invalid
}

// FromDepth converts a depth framebuffer format.
func FromDepth(f regs.DepthFormat) PixelFormat {
	switch f {
	case regs.DepthD16:
		return D16
	case regs.DepthD24:
		return D24
	case regs.DepthD24S8:
		return D24S8
	}
	return Invalid
}

// FromGPUPixel converts a display transfer format.
func FromGPUPixel(f regs.GPUPixelFormat) PixelFormat {
	switch f {
	case regs.GPUPixelRGBA8:
		return RGBA8
	case regs.GPUPixelRGB8:
		return RGB8
	case regs.GPUPixelRGB565:
		return RGB565
	case regs.GPUPixelRGB5A1:
		return RGB5A1
	case regs.GPUPixelRGBA4:
		return RGBA4
	}
	return Invalid
}

// CheckFormatsBlittable reports whether a blit between the two formats keeps
// the pixel data meaningful.
func CheckFormatsBlittable(src, dst PixelFormat) bool {
	st, dt := src.Type(), dst.Type()
	if st == TypeInvalid || dt == TypeInvalid {
		return false
	}
	if (st == TypeColor || st == TypeTexture) && (dt == TypeColor || dt == TypeTexture) {
		return true
	}
	return src == dst
}
