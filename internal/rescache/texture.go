package rescache

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/state"
	"github.com/gogpu/pica/internal/texcodec"
	"github.com/gogpu/pica/regs"
)

// TextureInfo describes the image sampled by a texture unit.
type TextureInfo struct {
	Addr   uint32
	Width  uint32
	Height uint32
	Format texcodec.PixelFormat
}

// TextureInfoFromConfig reads a texture unit configuration.
func TextureInfoFromConfig(cfg *regs.TextureConfig, format regs.TextureFormat) TextureInfo {
	return TextureInfo{
		Addr:   cfg.Addr,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: texcodec.FromTexture(format),
	}
}

// MaxLevel returns the deepest mip level a tiled w x h texture can have.
func MaxLevel(w, h uint32) uint32 {
	var l uint32
	for w>>(l+1) >= texcodec.TileSize && h>>(l+1) >= texcodec.TileSize {
		l++
	}
	return l
}

func (info TextureInfo) params(levels uint32) SurfaceParams {
	p := SurfaceParams{
		Addr:   info.Addr,
		Width:  info.Width,
		Height: info.Height,
		Format: info.Format,
		Tiled:  true,
		Levels: levels,
	}
	p.UpdateParams()
	return p
}

// GetTextureSurface returns a validated surface for a sampled texture with
// mip levels 0..maxLevel.
func (c *Cache) GetTextureSurface(info TextureInfo, maxLevel uint32) *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getTextureSurface(info, maxLevel)
}

func (c *Cache) getTextureSurface(info TextureInfo, maxLevel uint32) *Surface {
	if info.Addr == 0 || info.Width == 0 || info.Height == 0 {
		return nil
	}
	levels := min(maxLevel, MaxLevel(info.Width, info.Height)) + 1
	p := info.params(levels)
	if !p.Valid() {
		return nil
	}
	s := c.findExact(&p, ScaleIgnore)
	if s == nil {
		var err error
		if s, err = c.create(p); err != nil {
			slogger().Warn("rescache: texture allocation failed", "err", err)
			return nil
		}
		s.texture = true
	}
	c.validate(s, s.Span())
	return s
}

// CubeConfig identifies a cube texture by its faces.
type CubeConfig struct {
	// Faces are ordered +X, -X, +Y, -Y, +Z, -Z.
	Faces  [6]uint32
	Width  uint32
	Levels uint32
	Format texcodec.PixelFormat
}

// CubeConfigFromRegs reads the cube configuration of texture unit 0.
func CubeConfigFromRegs(t *regs.TexturingRegs, levels uint32) CubeConfig {
	u := &t.Units[0]
	return CubeConfig{
		Faces: [6]uint32{
			u.Config.Addr, t.CubeAddrNX,
			t.CubeAddrPY, t.CubeAddrNY,
			t.CubeAddrPZ, t.CubeAddrNZ,
		},
		Width:  u.Config.Width,
		Levels: levels,
		Format: texcodec.FromTexture(u.Format),
	}
}

type cube struct {
	tex   gpucore.TextureID
	scale uint32
	faces [6]*Surface
	gens  [6]uint64
}

// GetTextureCube returns a cube texture whose layers mirror the six face
// surfaces. Faces whose surface changed since the last call are copied again.
func (c *Cache) GetTextureCube(cfg CubeConfig) gpucore.TextureID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.Width == 0 || cfg.Format.Type() == texcodec.TypeInvalid {
		return gpucore.InvalidID
	}
	levels := min(max(cfg.Levels, 1)-1, MaxLevel(cfg.Width, cfg.Width)) + 1
	cb, ok := c.cubes[cfg]
	if !ok {
		scale := c.cfg.Scale
		tex, err := c.dev.CreateTexture(&gpucore.TextureDescriptor{
			Label:     fmt.Sprintf("cube %#08x %s", cfg.Faces[0], cfg.Format),
			Width:     cfg.Width * scale,
			Height:    cfg.Width * scale,
			MipLevels: levels,
			Cube:      true,
			Format:    gputypes.TextureFormatRGBA8Unorm,
		})
		if err != nil {
			slogger().Warn("rescache: cube allocation failed", "err", err)
			return gpucore.InvalidID
		}
		cb = &cube{tex: tex, scale: scale}
		c.cubes[cfg] = cb
	}
	for i, addr := range cfg.Faces {
		face := c.getTextureSurface(TextureInfo{Addr: addr, Width: cfg.Width, Height: cfg.Width, Format: cfg.Format}, levels-1)
		if face == nil {
			continue
		}
		if face == cb.faces[i] && face.generation == cb.gens[i] {
			continue
		}
		for l := uint32(0); l < min(levels, face.Levels); l++ {
			fw := max(cfg.Width>>l, 1)
			src := gpucore.TextureRegion{Texture: face.tex, Level: l, Rect: gpucore.RectWH(0, 0, fw, fw).Scale(face.Scale)}
			dst := gpucore.TextureRegion{Texture: cb.tex, Level: l, Layer: uint32(i), Rect: gpucore.RectWH(0, 0, fw, fw).Scale(cb.scale)}
			if err := c.dev.BlitTexture(src, dst, false); err != nil {
				slogger().Warn("rescache: cube face copy failed", "face", i, "err", err)
			}
		}
		cb.faces[i] = face
		cb.gens[i] = face.generation
	}
	return cb.tex
}

// GetSampler returns a sampler for desc, creating it on first use.
func (c *Cache) GetSampler(desc gpucore.SamplerDescriptor) gpucore.SamplerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.samplers[desc]; ok {
		return id
	}
	id, err := c.dev.CreateSampler(&desc)
	if err != nil {
		slogger().Warn("rescache: sampler creation failed", "err", err)
		return gpucore.InvalidID
	}
	c.samplers[desc] = id
	return id
}

// SamplerFromConfig converts texture unit sampling state.
func SamplerFromConfig(cfg *regs.TextureConfig) gpucore.SamplerDescriptor {
	return gpucore.SamplerDescriptor{
		MagFilter: state.FilterMode(cfg.MagFilter),
		MinFilter: state.FilterMode(cfg.MinFilter),
		MipFilter: state.FilterMode(cfg.MipFilter),
		WrapU:     state.AddressMode(cfg.WrapS),
		WrapV:     state.AddressMode(cfg.WrapT),
		LodMin:    float32(cfg.LodMin),
		LodMax:    float32(max(cfg.LodMax, cfg.LodMin)),
	}
}

// NullSurface returns the texture bound to disabled units. The zero ID
// samples the device null texture.
func (c *Cache) NullSurface() gpucore.TextureID { return gpucore.InvalidID }

// NullCube returns the cube bound when no cube is sampled.
func (c *Cache) NullCube() gpucore.TextureID { return gpucore.InvalidID }

// CopyForSampling returns a snapshot of s that can be sampled while s is
// attached as a render target.
func (c *Cache) CopyForSampling(s *Surface) gpucore.TextureID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		return gpucore.InvalidID
	}
	if s.copyTex == gpucore.InvalidID {
		tex, err := c.dev.CreateTexture(&gpucore.TextureDescriptor{
			Label:     fmt.Sprintf("surface copy %#08x", s.Addr),
			Width:     s.ScaledWidth(),
			Height:    s.ScaledHeight(),
			MipLevels: 1,
			Format:    s.Format.HostFormat(),
		})
		if err != nil {
			slogger().Warn("rescache: sampling copy allocation failed", "err", err)
			return gpucore.InvalidID
		}
		s.copyTex = tex
	}
	full := gpucore.RectWH(0, 0, s.ScaledWidth(), s.ScaledHeight())
	err := c.dev.CopyTexture(
		gpucore.TextureRegion{Texture: s.tex, Rect: full},
		gpucore.TextureRegion{Texture: s.copyTex, Rect: full},
	)
	if err != nil {
		slogger().Warn("rescache: sampling copy failed", "err", err)
		return gpucore.InvalidID
	}
	return s.copyTex
}
