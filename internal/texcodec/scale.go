package texcodec

// Upscale enlarges a host layout image by an integer factor using
// nearest sampling. The D24S8 layout is scaled plane by plane.
func Upscale(format PixelFormat, host []byte, w, h, factor uint32) []byte {
	if factor <= 1 {
		return host
	}
	return resample(format, host, w, h, w*factor, h*factor)
}

// Downscale shrinks a host layout image by an integer factor, keeping the
// top-left sample of every factor x factor block.
func Downscale(format PixelFormat, host []byte, w, h, factor uint32) []byte {
	if factor <= 1 {
		return host
	}
	return resample(format, host, w, h, w/factor, h/factor)
}

func resample(format PixelFormat, src []byte, sw, sh, dw, dh uint32) []byte {
	if format == D24S8 {
		out := make([]byte, dw*dh*5)
		resamplePlane(out[:dw*dh*4], src[:sw*sh*4], 4, sw, sh, dw, dh)
		resamplePlane(out[dw*dh*4:], src[sw*sh*4:], 1, sw, sh, dw, dh)
		return out
	}
	bpp := format.HostBytesPerPixel()
	out := make([]byte, dw*dh*bpp)
	resamplePlane(out, src, bpp, sw, sh, dw, dh)
	return out
}

func resamplePlane(dst, src []byte, bpp, sw, sh, dw, dh uint32) {
	for y := uint32(0); y < dh; y++ {
		sy := y * sh / dh
		for x := uint32(0); x < dw; x++ {
			sx := x * sw / dw
			so := (sy*sw + sx) * bpp
			copy(dst[(y*dw+x)*bpp:(y*dw+x+1)*bpp], src[so:so+bpp])
		}
	}
}
