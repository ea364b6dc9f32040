package rescache

import (
	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/texcodec"
	"github.com/gogpu/pica/regs"
)

// Framebuffer is the set of render targets of one draw.
type Framebuffer struct {
	Color *Surface
	Depth *Surface
	// DrawRect is the viewport clipped to the targets, unscaled.
	DrawRect gpucore.Rect
	// Rect is DrawRect in scaled host pixels.
	Rect  gpucore.Rect
	Scale uint32
}

// Targets returns the host attachment slot value.
func (fb *Framebuffer) Targets() gpucore.RenderTargets {
	var t gpucore.RenderTargets
	if fb.Color != nil {
		t.Color = fb.Color.tex
	}
	if fb.Depth != nil {
		t.Depth = fb.Depth.tex
	}
	return t
}

// Width returns the unscaled width of the targets.
func (fb *Framebuffer) Width() uint32 {
	switch {
	case fb.Color != nil:
		return fb.Color.Width
	case fb.Depth != nil:
		return fb.Depth.Width
	}
	return 0
}

// Height returns the unscaled height of the targets.
func (fb *Framebuffer) Height() uint32 {
	switch {
	case fb.Color != nil:
		return fb.Color.Height
	case fb.Depth != nil:
		return fb.Depth.Height
	}
	return 0
}

// GetFramebufferSurfaces resolves the render targets described by the
// framebuffer registers and validates the part of them the viewport covers.
// A depth buffer overlapping the color buffer is dropped.
func (c *Cache) GetFramebufferSurfaces(usingColor, usingDepth bool, fbRegs *regs.FramebufferRegs, viewport gpucore.Rect) Framebuffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.collect()
	scale := c.cfg.Scale
	colorParams := SurfaceParams{
		Addr:   fbRegs.ColorAddr,
		Width:  fbRegs.Width,
		Height: fbRegs.Height,
		Format: texcodec.FromColor(fbRegs.ColorFormat),
		Tiled:  true,
		Scale:  scale,
	}
	colorParams.UpdateParams()
	depthParams := colorParams
	depthParams.Addr = fbRegs.DepthAddr
	depthParams.Format = texcodec.FromDepth(fbRegs.DepthFormat)
	depthParams.UpdateParams()

	usingColor = usingColor && colorParams.Valid()
	usingDepth = usingDepth && depthParams.Valid()
	if usingColor && usingDepth && colorParams.Span().Overlaps(depthParams.Span()) {
		slogger().Warn("rescache: color and depth buffers overlap, depth disabled")
		usingDepth = false
	}

	bounds := gpucore.RectWH(0, 0, fbRegs.Width, fbRegs.Height)
	drawRect := viewport.Intersect(bounds)
	fb := Framebuffer{DrawRect: drawRect, Rect: drawRect.Scale(scale), Scale: scale}
	if usingColor {
		fb.Color = c.getSurface(colorParams, ScaleExact, false)
		if fb.Color != nil {
			c.validate(fb.Color, fb.Color.RectSpan(drawRect))
		}
	}
	if usingDepth {
		fb.Depth = c.getSurface(depthParams, ScaleExact, false)
		if fb.Depth != nil {
			c.validate(fb.Depth, fb.Depth.RectSpan(drawRect))
		}
	}
	return fb
}

// InvalidateRenderTargets records that a draw wrote the draw rectangle of
// the targets.
func (c *Cache) InvalidateRenderTargets(fb *Framebuffer, colorWritten, depthWritten bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range []struct {
		s       *Surface
		written bool
	}{{fb.Color, colorWritten}, {fb.Depth, depthWritten}} {
		if t.s == nil || !t.written || !t.s.registered {
			continue
		}
		span := t.s.RectSpan(fb.DrawRect)
		c.invalidateRegion(span, t.s)
	}
}
