package pica

import (
	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/rescache"
	"github.com/gogpu/pica/internal/texcodec"
	"github.com/gogpu/pica/regs"
)

// TexCoords is a normalized rectangle inside a texture.
type TexCoords struct {
	Left, Top, Right, Bottom float32
}

// ScreenInfo tells the presenter where a screen image lives on the host.
type ScreenInfo struct {
	Texture   gpucore.TextureID
	TexCoords TexCoords
}

// AccelerateDisplay points info at the cached surface holding the
// framebuffer at addr. stride is in pixels. It returns false when the
// framebuffer is not cached and must be presented from guest memory.
func (r *Rasterizer) AccelerateDisplay(cfg regs.FramebufferConfig, addr, stride uint32, info *ScreenInfo) bool {
	if addr == 0 || info == nil {
		return false
	}
	params := rescache.SurfaceParams{
		Addr:   addr,
		Width:  min(cfg.Width, stride),
		Height: cfg.Height,
		Stride: stride,
		Format: texcodec.FromGPUPixel(cfg.Format),
	}
	s, rect := r.cache.GetSurfaceForDisplay(params)
	if s == nil {
		Logger().Debug("pica: display surface not cached", "addr", addr)
		return false
	}
	w, h := float32(s.ScaledWidth()), float32(s.ScaledHeight())
	info.Texture = s.Handle()
	info.TexCoords = TexCoords{
		Left:   float32(rect.Left) / w,
		Top:    float32(rect.Top) / h,
		Right:  float32(rect.Right) / w,
		Bottom: float32(rect.Bottom) / h,
	}
	return true
}
