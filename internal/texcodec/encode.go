package texcodec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode converts a host upload layout image back into guest bytes, writing
// into dst. Only framebuffer color formats and depth formats can be encoded.
func Encode(format PixelFormat, dst, host []byte, w, h uint32, tiled bool) error {
	if uint32(len(dst)) < format.GuestSize(w, h) {
		return fmt.Errorf("%w: %s %dx%d", ErrShortBuffer, format, w, h)
	}
	if uint32(len(host)) < w*h*format.HostBytesPerPixel() {
		return fmt.Errorf("%w: host data for %s %dx%d", ErrShortBuffer, format, w, h)
	}
	switch format.Type() {
	case TypeColor:
		bpp := format.BytesPerPixel()
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				o := (y*w + x) * 4
				var c [4]uint8
				copy(c[:], host[o:o+4])
				encodePixel(format, dst[PixelIndex(x, y, w, tiled)*bpp:], c)
			}
		}
		return nil
	case TypeDepth, TypeDepthStencil:
		encodeDepth(format, dst, host, w, h, tiled)
		return nil
	}
	return fmt.Errorf("%w: encode %s", ErrUnsupportedFormat, format)
}

// EncodePixel writes one RGBA8 color in the given color format.
func EncodePixel(format PixelFormat, dst []byte, c [4]uint8) {
	encodePixel(format, dst, c)
}

func encodePixel(format PixelFormat, p []byte, c [4]uint8) {
	switch format {
	case RGBA8:
		p[0], p[1], p[2], p[3] = c[3], c[2], c[1], c[0]
	case RGB8:
		p[0], p[1], p[2] = c[2], c[1], c[0]
	case RGB5A1:
		v := uint16(c[0]>>3)<<11 | uint16(c[1]>>3)<<6 | uint16(c[2]>>3)<<1 | uint16(c[3]>>7)
		binary.LittleEndian.PutUint16(p, v)
	case RGB565:
		v := uint16(c[0]>>3)<<11 | uint16(c[1]>>2)<<5 | uint16(c[2]>>3)
		binary.LittleEndian.PutUint16(p, v)
	case RGBA4:
		v := uint16(c[0]>>4)<<12 | uint16(c[1]>>4)<<8 | uint16(c[2]>>4)<<4 | uint16(c[3]>>4)
		binary.LittleEndian.PutUint16(p, v)
	}
}

func encodeDepth(format PixelFormat, dst, host []byte, w, h uint32, tiled bool) {
	bpp := format.BytesPerPixel()
	n := w * h
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			i := y*w + x
			d := dst[PixelIndex(x, y, w, tiled)*bpp:]
			if format == D16 {
				copy(d[:2], host[i*2:])
				continue
			}
			f := math.Float32frombits(binary.LittleEndian.Uint32(host[i*4:]))
			v := uint32(math.Round(float64(min(max(f, 0), 1)) * 0xffffff))
			d[0], d[1], d[2] = uint8(v), uint8(v>>8), uint8(v>>16)
			if format == D24S8 {
				d[3] = host[n*4+i]
			}
		}
	}
}

// ConvertFormat re-encodes a linear or tiled guest image between two color
// formats. It is used by display transfers that change the pixel format.
func ConvertFormat(src []byte, srcFormat PixelFormat, srcTiled bool,
	dst []byte, dstFormat PixelFormat, dstTiled bool, w, h uint32) error {
	host, err := Decode(srcFormat, src, w, h, srcTiled)
	if err != nil {
		return err
	}
	return Encode(dstFormat, dst, host, w, h, dstTiled)
}
