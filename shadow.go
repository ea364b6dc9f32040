package pica

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/rescache"
)

// shadowDepthFormat holds the depth of the nearest shadow write per texel.
const shadowDepthFormat = gputypes.TextureFormatDepth32Float

// shadowDepthState keeps a packed shadow texel only when the new fragment
// is nearer than every earlier write to it.
var shadowDepthState = gpucore.DepthStencilState{
	DepthTestEnable:  true,
	DepthCompare:     gputypes.CompareFunctionLess,
	DepthWriteEnable: true,
}

// shadowDepth is the scratch depth attachment of the current shadow map.
// gen is the shadow map generation after the last shadow draw; any other
// value means the map changed outside shadow rendering.
type shadowDepth struct {
	surface *rescache.Surface
	tex     gpucore.TextureID
	gen     uint64
}

// shadowTarget returns the scratch depth texture for shadow map s, reset
// to the far plane when s is new or was rewritten since the last shadow
// draw.
func (r *Rasterizer) shadowTarget(s *rescache.Surface) gpucore.TextureID {
	sd := &r.shadow
	if sd.surface == s && sd.tex != gpucore.InvalidID && sd.gen == s.Generation() {
		return sd.tex
	}
	if sd.surface != s || sd.tex == gpucore.InvalidID {
		r.releaseShadowTarget()
		tex, err := r.dev.CreateTexture(&gpucore.TextureDescriptor{
			Label:        "pica shadow depth",
			Width:        s.ScaledWidth(),
			Height:       s.ScaledHeight(),
			MipLevels:    1,
			Format:       shadowDepthFormat,
			RenderTarget: true,
		})
		if err != nil {
			Logger().Warn("pica: shadow depth target", "err", err)
			return gpucore.InvalidID
		}
		sd.surface, sd.tex = s, tex
	}
	full := gpucore.TextureRegion{Texture: sd.tex, Rect: gpucore.RectWH(0, 0, s.ScaledWidth(), s.ScaledHeight())}
	if err := r.dev.FillTexture(full, gpucore.ClearValue{Depth: 1}); err != nil {
		Logger().Warn("pica: shadow depth reset", "err", err)
	}
	sd.gen = s.Generation()
	return sd.tex
}

// shadowDrawn records the shadow map generation left by a shadow draw.
func (r *Rasterizer) shadowDrawn(s *rescache.Surface) {
	if r.shadow.surface == s {
		r.shadow.gen = s.Generation()
	}
}

func (r *Rasterizer) releaseShadowTarget() {
	if r.shadow.tex != gpucore.InvalidID {
		r.dev.DestroyTexture(r.shadow.tex)
	}
	r.shadow = shadowDepth{}
}
