package rescache

import (
	"fmt"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/interval"
	"github.com/gogpu/pica/internal/texcodec"
	"github.com/gogpu/pica/memory"
)

// validate uploads every invalid byte of s inside span. Host-newer data of
// other surfaces in the range is flushed first so memory is current.
func (c *Cache) validate(s *Surface, span interval.Span) {
	span = span.Intersect(s.Span())
	if span.Empty() {
		return
	}
	for _, inv := range s.invalid.Overlapping(span) {
		for _, o := range c.overlapping(inv) {
			if o != s {
				c.flushSurface(o, inv)
			}
		}
		if s.texture && c.replace(s, inv) {
			continue
		}
		for l := uint32(0); l < s.Levels; l++ {
			lp := s.Level(l)
			first, last := lp.bands(inv)
			if first >= last {
				continue
			}
			if err := c.upload(s, l, &lp, first, last); err != nil {
				slogger().Warn("rescache: upload failed", "addr", fmt.Sprintf("%#08x", lp.Addr), "level", l, "err", err)
				continue
			}
			s.invalid.Remove(lp.bandSpan(first, last))
		}
	}
}

// upload decodes bands [first, last) of level l and writes them to the texture.
func (c *Cache) upload(s *Surface, l uint32, lp *SurfaceParams, first, last uint32) error {
	lines := lp.rowLines()
	rows := min((last-first)*lines, lp.Height-first*lines)
	src := readPadded(c.mem, lp.Addr+first*lp.rowBytes(), lp.Format.GuestSize(lp.Stride, rows))
	if src == nil {
		return ErrUnmapped
	}
	host, err := texcodec.Decode(lp.Format, src, lp.Stride, rows, lp.Tiled)
	if err != nil {
		return err
	}
	if lp.Stride != lp.Width {
		host = cropColumns(lp.Format, host, lp.Stride, lp.Width, rows)
	}
	host = texcodec.Upscale(lp.Format, host, lp.Width, rows, s.Scale)
	dst := gpucore.TextureRegion{
		Texture: s.tex,
		Level:   l,
		Rect:    gpucore.RectWH(0, first*lines, lp.Width, rows).Scale(s.Scale),
	}
	if err := c.dev.WriteTexture(dst, host); err != nil {
		return err
	}
	s.generation++
	c.stats.Uploads++
	c.stats.UploadBytes += uint64(len(src))
	return nil
}

// replace loads a pack image for a whole texture. It reports whether the
// surface now holds the replacement.
func (c *Cache) replace(s *Surface, inv interval.Span) bool {
	pack := c.cfg.Pack
	if pack == nil || inv != s.Span() {
		return false
	}
	src := readPadded(c.mem, s.Addr, s.Format.GuestSize(s.Width, s.Height))
	if src == nil {
		return false
	}
	hash := texcodec.Hash(src)
	if !pack.Has(hash) {
		return false
	}
	img, err := pack.Load(hash, s.ScaledWidth(), s.ScaledHeight())
	if err != nil {
		slogger().Warn("rescache: replacement texture failed", "hash", fmt.Sprintf("%016X", hash), "err", err)
		return false
	}
	dst := gpucore.TextureRegion{Texture: s.tex, Rect: gpucore.RectWH(0, 0, img.Width, img.Height)}
	if err := c.dev.WriteTexture(dst, img.Pix); err != nil {
		slogger().Warn("rescache: replacement upload failed", "err", err)
		return false
	}
	s.custom = true
	s.invalid.Remove(s.Span())
	s.generation++
	c.stats.Replacements++
	return true
}

// flushSurface writes the dirty bytes of s inside span back to memory.
func (c *Cache) flushSurface(s *Surface, span interval.Span) {
	for _, d := range s.dirty.Overlapping(span) {
		if err := c.download(s, d); err != nil {
			slogger().Warn("rescache: flush failed", "addr", fmt.Sprintf("%#08x", d.Start), "err", err)
		}
		s.dirty.Remove(d)
	}
}

// download encodes the bands of level 0 covering span and copies exactly
// the span bytes into guest memory.
func (c *Cache) download(s *Surface, span interval.Span) error {
	lp := s.Level(0)
	first, last := lp.bands(span)
	if first >= last {
		return nil
	}
	lines := lp.rowLines()
	rows := min((last-first)*lines, lp.Height-first*lines)
	start := lp.Addr + first*lp.rowBytes()
	size := lp.Format.GuestSize(lp.Stride, rows)

	src := gpucore.TextureRegion{
		Texture: s.tex,
		Rect:    gpucore.RectWH(0, first*lines, lp.Width, rows).Scale(s.Scale),
	}
	host, err := c.dev.ReadTexture(src)
	if err != nil {
		return err
	}
	host = texcodec.Downscale(lp.Format, host, lp.Width*s.Scale, rows*s.Scale, s.Scale)

	guest := make([]byte, size)
	if lp.Stride != lp.Width {
		// Keep the guest pixels between Width and Stride.
		old := readPadded(c.mem, start, size)
		if old == nil {
			return ErrUnmapped
		}
		full, err := texcodec.Decode(lp.Format, old, lp.Stride, rows, lp.Tiled)
		if err != nil {
			return err
		}
		host = pasteColumns(lp.Format, full, host, lp.Stride, lp.Width, rows)
	}
	if err := texcodec.Encode(lp.Format, guest, host, lp.Stride, rows, lp.Tiled); err != nil {
		return err
	}

	dst := c.mem.PhysicalPointer(start)
	if dst == nil {
		return ErrUnmapped
	}
	part := span.Intersect(interval.SpanOf(start, size))
	lo, hi := part.Start-start, part.End-start
	if uint32(len(dst)) < hi {
		return ErrUnmapped
	}
	copy(dst[lo:hi], guest[lo:hi])
	c.stats.Flushes++
	c.stats.FlushBytes += uint64(hi - lo)
	return nil
}

// readPadded returns size bytes at addr. A range running past the end of
// its region is zero padded; an unmapped start returns nil.
func readPadded(mem memory.Memory, addr, size uint32) []byte {
	p := mem.PhysicalPointer(addr)
	if p == nil {
		return nil
	}
	if uint32(len(p)) >= size {
		return p[:size:size]
	}
	out := make([]byte, size)
	copy(out, p)
	return out
}

// planes returns the byte size of each host plane of one pixel.
func planes(f texcodec.PixelFormat) []uint32 {
	if f == texcodec.D24S8 {
		return []uint32{4, 1}
	}
	return []uint32{f.HostBytesPerPixel()}
}

// cropColumns keeps the first w columns of a host image of width stride.
func cropColumns(f texcodec.PixelFormat, host []byte, stride, w, h uint32) []byte {
	var out []byte
	var off uint32
	for _, bpp := range planes(f) {
		for y := uint32(0); y < h; y++ {
			row := off + y*stride*bpp
			out = append(out, host[row:row+w*bpp]...)
		}
		off += stride * h * bpp
	}
	return out
}

// pasteColumns overwrites the first w columns of full with img.
func pasteColumns(f texcodec.PixelFormat, full, img []byte, stride, w, h uint32) []byte {
	var fo, io uint32
	for _, bpp := range planes(f) {
		for y := uint32(0); y < h; y++ {
			copy(full[fo+y*stride*bpp:], img[io+y*w*bpp:io+(y+1)*w*bpp])
		}
		fo += stride * h * bpp
		io += w * h * bpp
	}
	return full
}
