package rescache

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/interval"
	"github.com/gogpu/pica/internal/texcodec"
	"github.com/gogpu/pica/regs"
)

// AccelerateFill performs a memory fill on a cached surface. It reports
// false when no surface covers whole bands of the range in a format
// matching the fill width; the caller then fills memory itself.
func (c *Cache) AccelerateFill(cfg regs.MemoryFillConfig) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.EndAddr <= cfg.StartAddr {
		return false
	}
	span := interval.Span{Start: cfg.StartAddr, End: cfg.EndAddr}
	for _, s := range c.surfaces {
		if s.Levels != 1 || s.texture || !s.Span().Contains(span) {
			continue
		}
		if s.Format.BitsPerPixel() != cfg.FillWidth()*8 {
			continue
		}
		first, last, ok := wholeBands(&s.SurfaceParams, span)
		if !ok {
			continue
		}
		lines := s.rowLines()
		rows := min((last-first)*lines, s.Height-first*lines)
		dst := gpucore.TextureRegion{
			Texture: s.tex,
			Rect:    gpucore.RectWH(0, first*lines, s.Width, rows).Scale(s.Scale),
		}
		if err := c.dev.FillTexture(dst, fillValue(s.Format, cfg.Value32)); err != nil {
			slogger().Warn("rescache: fill failed", "err", err)
			return false
		}
		c.invalidateRegion(span, s)
		c.stats.Accelerations++
		return true
	}
	return false
}

// wholeBands reports the bands span covers exactly.
func wholeBands(p *SurfaceParams, span interval.Span) (uint32, uint32, bool) {
	rb := p.rowBytes()
	if (span.Start-p.Addr)%rb != 0 {
		return 0, 0, false
	}
	if span.End != p.End && (span.End-p.Addr)%rb != 0 {
		return 0, 0, false
	}
	first, last := p.bands(span)
	return first, last, first < last
}

// fillValue decodes a fill pattern as one pixel of f.
func fillValue(f texcodec.PixelFormat, v uint32) gpucore.ClearValue {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	switch f {
	case texcodec.D16:
		return gpucore.ClearValue{Depth: float32(v&0xffff) / 0xffff}
	case texcodec.D24:
		return gpucore.ClearValue{Depth: float32(v&0xffffff) / 0xffffff}
	case texcodec.D24S8:
		return gpucore.ClearValue{Depth: float32(v&0xffffff) / 0xffffff, Stencil: uint8(v >> 24)}
	}
	px := texcodec.DecodePixel(f, b[:], 0, 0, 1, false)
	var out gpucore.ClearValue
	for i, ch := range px {
		out.Color[i] = float32(ch) / 255
	}
	return out
}

// AccelerateDisplayTransfer blits between cached surfaces. The source must
// already be cached; otherwise the transfer is left to the caller.
func (c *Cache) AccelerateDisplayTransfer(cfg regs.DisplayTransferConfig) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := SurfaceParams{
		Addr:   cfg.InputAddr,
		Width:  cfg.OutputWidth,
		Stride: cfg.InputWidth,
		Height: cfg.OutputHeight,
		Format: texcodec.FromGPUPixel(cfg.InputFormat),
		Tiled:  !cfg.InputLinear,
	}
	src.UpdateParams()
	dst := SurfaceParams{
		Addr:   cfg.OutputAddr,
		Width:  cfg.OutputWidth,
		Height: cfg.OutputHeight,
		Format: texcodec.FromGPUPixel(cfg.OutputFormat),
		Tiled:  cfg.InputLinear != cfg.DontSwizzle,
	}
	if cfg.Scaling != regs.ScaleNone {
		dst.Width /= 2
	}
	if cfg.Scaling == regs.ScaleXY {
		dst.Height /= 2
	}
	dst.UpdateParams()
	if !src.Valid() || !dst.Valid() || !texcodec.CheckFormatsBlittable(src.Format, dst.Format) {
		return false
	}

	srcSurface := c.findExact(&src, ScaleIgnore)
	if srcSurface == nil {
		srcSurface = c.findSubRect(&src, ScaleIgnore)
	}
	if srcSurface == nil {
		return false
	}
	if srcSurface.Span().Overlaps(dst.Span()) {
		return false
	}
	c.validate(srcSurface, src.Span())
	srcRect := srcSurface.SubRect(&src).Scale(srcSurface.Scale)

	dst.Scale = srcSurface.Scale
	dstSurface, dstRect := c.getSurfaceSubRect(dst, ScaleUpscale, false)
	if dstSurface == nil || dstSurface == srcSurface {
		return false
	}
	flip := (src.Tiled != dst.Tiled) != cfg.FlipVertically
	err := c.dev.BlitTexture(
		gpucore.TextureRegion{Texture: srcSurface.tex, Rect: srcRect},
		gpucore.TextureRegion{Texture: dstSurface.tex, Rect: dstRect},
		flip,
	)
	if err != nil {
		slogger().Warn("rescache: display transfer blit failed", "err", err)
		return false
	}
	c.invalidateRegion(dst.Span(), dstSurface)
	c.stats.Accelerations++
	slogger().Debug("rescache: display transfer",
		"src", fmt.Sprintf("%#08x", src.Addr), "dst", fmt.Sprintf("%#08x", dst.Addr), "flip", flip)
	return true
}

// AccelerateTextureCopy copies whole bands between cached surfaces. Copies
// with gaps or partial bands are left to the caller.
func (c *Cache) AccelerateTextureCopy(cfg regs.DisplayTransferConfig) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := cfg.CopySize &^ 15
	if size == 0 {
		return false
	}
	inWidth, inGap := cfg.CopyInputWidth*16, cfg.CopyInputGap*16
	outWidth, outGap := cfg.CopyOutputWidth*16, cfg.CopyOutputGap*16
	if (inGap != 0 && inWidth < size) || (outGap != 0 && outWidth < size) {
		return false
	}

	span := interval.SpanOf(cfg.InputAddr, size)
	var srcSurface *Surface
	var first, last uint32
	for _, s := range c.surfaces {
		if s.Levels != 1 || s.texture || s.Format.Type() == texcodec.TypeTexture || !s.Span().Contains(span) {
			continue
		}
		var ok bool
		if first, last, ok = wholeBands(&s.SurfaceParams, span); ok {
			srcSurface = s
			break
		}
	}
	if srcSurface == nil {
		return false
	}
	if srcSurface.Span().Overlaps(interval.SpanOf(cfg.OutputAddr, size)) {
		return false
	}
	c.validate(srcSurface, span)
	lines := srcSurface.rowLines()
	rows := min((last-first)*lines, srcSurface.Height-first*lines)
	srcRect := gpucore.RectWH(0, first*lines, srcSurface.Width, rows)

	dst := srcSurface.SurfaceParams
	dst.Addr = cfg.OutputAddr
	dst.Height = rows
	dst.Stride = srcSurface.Width
	dst.UpdateParams()
	dstSurface, dstRect := c.getSurfaceSubRect(dst, ScaleUpscale, false)
	if dstSurface == nil || dstSurface == srcSurface {
		return false
	}
	err := c.dev.BlitTexture(
		gpucore.TextureRegion{Texture: srcSurface.tex, Rect: srcRect.Scale(srcSurface.Scale)},
		gpucore.TextureRegion{Texture: dstSurface.tex, Rect: dstRect},
		false,
	)
	if err != nil {
		slogger().Warn("rescache: texture copy blit failed", "err", err)
		return false
	}
	c.invalidateRegion(dst.Span(), dstSurface)
	c.stats.Accelerations++
	return true
}
