package texcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Errors returned by Decode and Encode.
var (
	// ErrShortBuffer is returned when the guest data is smaller than the image.
	ErrShortBuffer = errors.New("texcodec: guest buffer too small")

	// ErrUnsupportedFormat is returned for formats without a codec.
	ErrUnsupportedFormat = errors.New("texcodec: unsupported format")
)

// Decode converts a w x h guest image into the host upload layout.
// Compressed formats are always tiled.
func Decode(format PixelFormat, src []byte, w, h uint32, tiled bool) ([]byte, error) {
	if uint32(len(src)) < format.GuestSize(w, h) {
		return nil, fmt.Errorf("%w: %s %dx%d needs %d bytes, have %d",
			ErrShortBuffer, format, w, h, format.GuestSize(w, h), len(src))
	}
	switch {
	case format.IsCompressed():
		return decodeETC1(src, w, h, format == ETC1A4), nil
	case format.IsDepth():
		return decodeDepth(format, src, w, h, tiled), nil
	case format.Type() == TypeInvalid:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	out := make([]byte, w*h*4)
	bpp := format.BitsPerPixel()
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			bit := PixelIndex(x, y, w, tiled) * bpp
			c := decodePixel(format, src, bit)
			copy(out[(y*w+x)*4:], c[:])
		}
	}
	return out, nil
}

// DecodePixel returns the RGBA8 color of pixel (x, y).
func DecodePixel(format PixelFormat, src []byte, x, y, w uint32, tiled bool) [4]uint8 {
	return decodePixel(format, src, PixelIndex(x, y, w, tiled)*format.BitsPerPixel())
}

func expand4(v uint8) uint8 { return v<<4 | v }
func expand5(v uint8) uint8 { return v<<3 | v>>2 }
func expand6(v uint8) uint8 { return v<<2 | v>>4 }

// decodePixel reads one pixel starting at bit offset bit.
func decodePixel(format PixelFormat, src []byte, bit uint32) [4]uint8 {
	p := src[bit/8:]
	switch format {
	case RGBA8:
		return [4]uint8{p[3], p[2], p[1], p[0]}
	case RGB8:
		return [4]uint8{p[2], p[1], p[0], 255}
	case RGB5A1:
		v := binary.LittleEndian.Uint16(p)
		return [4]uint8{
			expand5(uint8(v >> 11 & 0x1f)),
			expand5(uint8(v >> 6 & 0x1f)),
			expand5(uint8(v >> 1 & 0x1f)),
			uint8(v&1) * 255,
		}
	case RGB565:
		v := binary.LittleEndian.Uint16(p)
		return [4]uint8{
			expand5(uint8(v >> 11 & 0x1f)),
			expand6(uint8(v >> 5 & 0x3f)),
			expand5(uint8(v & 0x1f)),
			255,
		}
	case RGBA4:
		v := binary.LittleEndian.Uint16(p)
		return [4]uint8{
			expand4(uint8(v >> 12 & 0xf)),
			expand4(uint8(v >> 8 & 0xf)),
			expand4(uint8(v >> 4 & 0xf)),
			expand4(uint8(v & 0xf)),
		}
	case IA8:
		return [4]uint8{p[1], p[1], p[1], p[0]}
	case RG8:
		return [4]uint8{p[1], p[0], 0, 255}
	case I8:
		return [4]uint8{p[0], p[0], p[0], 255}
	case A8:
		return [4]uint8{0, 0, 0, p[0]}
	case IA4:
		i, a := expand4(p[0]>>4), expand4(p[0]&0xf)
		return [4]uint8{i, i, i, a}
	case I4:
		i := expand4(nibble(p[0], bit))
		return [4]uint8{i, i, i, 255}
	case A4:
		return [4]uint8{0, 0, 0, expand4(nibble(p[0], bit))}
	}
	return [4]uint8{}
}

// nibble selects the low nibble for even pixels and the high one for odd.
func nibble(b uint8, bit uint32) uint8 {
	if bit&4 != 0 {
		return b >> 4
	}
	return b & 0xf
}

func decodeDepth(format PixelFormat, src []byte, w, h uint32, tiled bool) []byte {
	n := w * h
	bpp := format.BytesPerPixel()
	switch format {
	case D16:
		out := make([]byte, n*2)
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				s := PixelIndex(x, y, w, tiled) * bpp
				copy(out[(y*w+x)*2:], src[s:s+2])
			}
		}
		return out
	case D24:
		out := make([]byte, n*4)
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				s := PixelIndex(x, y, w, tiled) * bpp
				d := uint32(src[s]) | uint32(src[s+1])<<8 | uint32(src[s+2])<<16
				binary.LittleEndian.PutUint32(out[(y*w+x)*4:], math.Float32bits(float32(d)/0xffffff))
			}
		}
		return out
	default:
		out := make([]byte, n*5)
		stencil := out[n*4:]
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				s := PixelIndex(x, y, w, tiled) * bpp
				d := uint32(src[s]) | uint32(src[s+1])<<8 | uint32(src[s+2])<<16
				binary.LittleEndian.PutUint32(out[(y*w+x)*4:], math.Float32bits(float32(d)/0xffffff))
				stencil[y*w+x] = src[s+3]
			}
		}
		return out
	}
}
