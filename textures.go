package pica

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/rescache"
	"github.com/gogpu/pica/internal/shader"
	"github.com/gogpu/pica/regs"
)

// SyncTextureUnits resolves the texture units of the current registers and
// stores their bindings in the host state. fb is the framebuffer of the
// draw; a unit sampling its color target gets a copy instead.
func (r *Rasterizer) SyncTextureUnits(fb *rescache.Framebuffer) {
	b := &r.st.Regs
	tx := &b.Texturing
	cur := &r.mirror.Cur
	target := framebufferColor(fb)

	cur.Images[gpucore.ImageColorBuffer] = gpucore.InvalidID
	for i := 0; i < regs.NumTextureUnits; i++ {
		unit := &tx.Units[i]
		if !tx.Enabled(i) {
			cur.Textures[i] = gpucore.TextureBinding{Texture: r.cache.NullSurface()}
			continue
		}
		if i == 0 {
			special := true
			switch unit.Config.Type {
			case regs.TextureShadow2D:
				s := r.cache.GetTextureSurface(rescache.TextureInfoFromConfig(&unit.Config, unit.Format), 0)
				cur.Images[gpucore.ImageShadowPX] = surfaceHandle(s)
			case regs.TextureShadowCube:
				r.bindShadowCube(unit)
			case regs.TextureCube:
				r.bindTextureCube(unit)
			default:
				special = false
				r.unbindSpecial()
			}
			if special {
				// Unit 0 is not sampled in these modes; only a binding that
				// aliases the render target has to go.
				if target != gpucore.InvalidID && cur.Textures[0].Texture == target {
					cur.Textures[0] = gpucore.TextureBinding{Texture: r.cache.NullSurface()}
				}
				continue
			}
		}

		info := rescache.TextureInfoFromConfig(&unit.Config, unit.Format)
		s := r.cache.GetTextureSurface(info, unit.Config.LodMax)
		tex := surfaceHandle(s)
		if s != nil && tex == target {
			tex = r.cache.CopyForSampling(s)
		}
		cur.Textures[i] = gpucore.TextureBinding{Texture: tex, Sampler: r.sampler(&unit.Config)}
	}

	if fb != nil && fb.Color != nil && !r.caps.FramebufferFetch {
		cfg := shader.FSConfigFromRegs(b, r.mirror.EmulateMinMaxBlend)
		if cfg.NeedsColorBuffer() {
			cur.Images[gpucore.ImageColorBuffer] = r.cache.CopyForSampling(fb.Color)
		}
	}
}

// bindShadowCube resolves the six faces of a shadow cube into the shadow
// image slots. Every face shares the size and format of unit 0.
func (r *Rasterizer) bindShadowCube(unit *regs.TextureUnit) {
	tx := &r.st.Regs.Texturing
	cur := &r.mirror.Cur
	info := rescache.TextureInfoFromConfig(&unit.Config, unit.Format)
	faces := [6]uint32{unit.Config.Addr, tx.CubeAddrNX, tx.CubeAddrPY, tx.CubeAddrNY, tx.CubeAddrPZ, tx.CubeAddrNZ}
	for face, addr := range faces {
		info.Addr = addr
		s := r.cache.GetTextureSurface(info, 0)
		cur.Images[gpucore.ImageShadowPX+gpucore.ImageSlot(face)] = surfaceHandle(s)
	}
}

func (r *Rasterizer) bindTextureCube(unit *regs.TextureUnit) {
	cfg := rescache.CubeConfigFromRegs(&r.st.Regs.Texturing, unit.Config.LodMax+1)
	r.mirror.Cur.Textures[gpucore.TextureUnitCube] = gpucore.TextureBinding{
		Texture: r.cache.GetTextureCube(cfg),
		Sampler: r.sampler(&unit.Config),
	}
}

// unbindSpecial clears the cube unit and the shadow image slots.
func (r *Rasterizer) unbindSpecial() {
	cur := &r.mirror.Cur
	cur.Textures[gpucore.TextureUnitCube] = gpucore.TextureBinding{Texture: r.cache.NullCube()}
	for s := gpucore.ImageShadowPX; s <= gpucore.ImageShadowNZ; s++ {
		cur.Images[s] = gpucore.InvalidID
	}
}

// sampler returns the sampler of a unit with the configured filter override.
func (r *Rasterizer) sampler(cfg *regs.TextureConfig) gpucore.SamplerID {
	desc := rescache.SamplerFromConfig(cfg)
	switch r.opts.filter {
	case FilterNearest:
		desc.MagFilter, desc.MinFilter = gputypes.FilterModeNearest, gputypes.FilterModeNearest
	case FilterLinear:
		desc.MagFilter, desc.MinFilter = gputypes.FilterModeLinear, gputypes.FilterModeLinear
	}
	return r.cache.GetSampler(desc)
}

func surfaceHandle(s *rescache.Surface) gpucore.TextureID {
	if s == nil {
		return gpucore.InvalidID
	}
	return s.Handle()
}
