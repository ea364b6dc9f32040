package shader

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/gogpu/pica/internal/state"
	"github.com/gogpu/pica/regs"
)

// GSKind selects the vertex epilogue that stands in for the geometry stage.
type GSKind uint8

const (
	// GSTrivial maps outputs by semantic and passes them on.
	GSTrivial GSKind = iota
	// GSFixed also canonicalizes the quaternion sign so that neighbouring
	// vertices interpolate on the same hemisphere.
	GSFixed
)

func (k GSKind) String() string {
	if k == GSFixed {
		return "fixed"
	}
	return "trivial"
}

// NumOutputRegisters is the number of vertex shader output registers.
const NumOutputRegisters = 16

// VSConfig identifies a programmable vertex shader.
type VSConfig struct {
	ProgramHash uint64
	SwizzleHash uint64
	EntryPoint  uint32
	// Outputs maps output register components to semantics.
	Outputs [NumOutputRegisters][4]regs.Semantic
	// NumAttributes attributes are fed; attribute i loads input register
	// AttributeRegisters[i].
	NumAttributes      uint8
	AttributeRegisters [regs.MaxAttributes]uint8
	GS                 GSKind
}

// VSConfigFromRegs builds the config of the current vertex program.
// It reports false when the program uses instructions outside the
// supported straight-line subset.
func VSConfigFromRegs(r *regs.Block, setup *regs.VSSetup, gs GSKind) (VSConfig, bool) {
	cfg := VSConfig{EntryPoint: r.VS.EntryPoint, GS: gs}
	end, swizzles, ok := scanProgram(setup.ProgramCode[:], r.VS.EntryPoint)
	if !ok {
		return cfg, false
	}
	cfg.ProgramHash = hashWords(setup.ProgramCode[:end])
	cfg.SwizzleHash = hashWords(setup.SwizzleData[:swizzles])

	for i := range cfg.Outputs {
		for c := range cfg.Outputs[i] {
			cfg.Outputs[i][c] = regs.SemInvalid
		}
	}
	// Semantic table entries follow the enabled output registers in order.
	attr := 0
	for reg := 0; reg < NumOutputRegisters && attr < len(r.Rasterizer.VSOutputAttributes); reg++ {
		if r.VS.OutputMask&(1<<uint(reg)) == 0 {
			continue
		}
		if uint32(attr) < r.Rasterizer.VSOutputTotal {
			cfg.Outputs[reg] = r.Rasterizer.VSOutputAttributes[attr]
		}
		attr++
	}
	cfg.NumAttributes = uint8(min(r.Pipeline.VertexAttributes.NumAttributes, regs.MaxAttributes))
	for i := 0; i < int(cfg.NumAttributes); i++ {
		cfg.AttributeRegisters[i] = uint8(r.VS.RegisterForAttribute(i))
	}
	return cfg, true
}

// Hash returns a stable 64-bit key for disk caching.
func (c *VSConfig) Hash() uint64 { return hashValue(c) }

// LightConfig is the per-light part of a fragment shader config.
type LightConfig struct {
	Num         uint8
	Directional bool
	TwoSided    bool
	DistAtten   bool
}

// LutConfig selects one lighting lookup table.
type LutConfig struct {
	Enable bool
	Input  regs.LightingInput
	Abs    bool
}

// LightingConfig is the supported subset of fragment lighting.
type LightingConfig struct {
	Enable          bool
	NumLights       uint8
	Lights          [regs.NumLights]LightConfig
	D0, D1          LutConfig
	ClampHighlights bool
}

// ProcTexConfig describes the procedural texture unit.
type ProcTexConfig struct {
	Enable bool
	// Coord selects the texture coordinate set, 0..2.
	Coord         uint8
	NoiseEnable   bool
	UClamp        uint8
	VClamp        uint8
	ColorCombiner uint8
	AlphaCombiner uint8
	SeparateAlpha bool
	LUTFilter     uint8
}

// BlendConfig is output merger blending done in the shader.
type BlendConfig struct {
	Enable   bool
	ColorEq  regs.BlendEquation
	AlphaEq  regs.BlendEquation
	ColorSrc regs.BlendFactor
	ColorDst regs.BlendFactor
	AlphaSrc regs.BlendFactor
	AlphaDst regs.BlendFactor
}

// FSConfig identifies a generated fragment shader.
type FSConfig struct {
	AlphaTestFunc regs.CompareFunc
	ScissorMode   regs.ScissorMode
	// ZBuffer selects z (true) or w (false) depth buffering.
	ZBuffer  bool
	UserClip bool

	FogMode regs.FogMode
	FogFlip bool

	ShadowRendering    bool
	ShadowTexturePersp bool

	Texture0Type      regs.TextureType
	TextureEnable     [regs.NumTextureUnits]bool
	Texture2UseCoord1 bool
	Border            [regs.NumTextureUnits][2]bool

	Tev               [regs.NumTevStages]regs.TevStage
	UpdateBufferRGB   [4]bool
	UpdateBufferAlpha [4]bool

	Lighting LightingConfig
	ProcTex  ProcTexConfig

	Blend   BlendConfig
	LogicOp regs.LogicOp
}

// NeedsColorBuffer reports whether the shader reads the color attachment.
func (c *FSConfig) NeedsColorBuffer() bool {
	return c.Blend.Enable || c.LogicOp != regs.LogicCopy
}

// UsesShadowTexture reports whether unit 0 samples a shadow map.
func (c *FSConfig) UsesShadowTexture() bool {
	return c.TextureEnable[0] &&
		(c.Texture0Type == regs.TextureShadow2D || c.Texture0Type == regs.TextureShadowCube)
}

// FSConfigFromRegs builds the fragment shader config of the current draw.
// emulateMinMax moves min/max blending into the shader.
func FSConfigFromRegs(r *regs.Block, emulateMinMax bool) FSConfig {
	om := &r.Framebuffer.OutputMerger
	tx := &r.Texturing
	cfg := FSConfig{
		AlphaTestFunc:      regs.CompareAlways,
		ScissorMode:        r.Rasterizer.Scissor.Mode,
		ZBuffer:            r.Rasterizer.DepthMapEnable,
		UserClip:           r.Rasterizer.ClipEnable,
		FogMode:            tx.FogMode,
		FogFlip:            tx.FogFlip,
		ShadowRendering:    r.Framebuffer.IsShadowRendering(),
		ShadowTexturePersp: tx.Units[0].Config.ShadowPersp,
		Texture0Type:       tx.Units[0].Config.Type,
		Texture2UseCoord1:  tx.Texture2UseCoord1,
		UpdateBufferRGB:    tx.UpdateBufferRGB,
		UpdateBufferAlpha:  tx.UpdateBufferAlpha,
		LogicOp:            regs.LogicCopy,
	}
	if om.AlphaTestEnable {
		cfg.AlphaTestFunc = om.AlphaTestFunc
	}
	if cfg.FogMode != regs.FogFog {
		cfg.FogMode = regs.FogNone
		cfg.FogFlip = false
	}
	for i := 0; i < regs.NumTextureUnits; i++ {
		cfg.TextureEnable[i] = tx.Enabled(i)
		c := &tx.Units[i].Config
		cfg.Border[i] = [2]bool{state.IsBorderWrap(c.WrapS), state.IsBorderWrap(c.WrapT)}
	}
	if !cfg.TextureEnable[0] {
		cfg.Texture0Type = regs.TextureDisabled
	}
	for i := range cfg.Tev {
		cfg.Tev[i] = tx.TevStages[i]
		cfg.Tev[i].ConstColor = [4]uint8{}
	}

	if l := &r.Lighting; !l.Disable {
		lc := &cfg.Lighting
		lc.Enable = true
		lc.NumLights = uint8(min(l.NumLights, regs.NumLights))
		for i := 0; i < int(lc.NumLights); i++ {
			n := l.LightEnable[i] & 7
			src := &l.Lights[n]
			lc.Lights[i] = LightConfig{Num: n, Directional: src.Directional, TwoSided: src.TwoSided, DistAtten: src.DistAttenEnable}
		}
		lc.D0 = LutConfig{Enable: l.D0Enable, Input: l.D0Input, Abs: l.D0Abs}
		lc.D1 = LutConfig{Enable: l.D1Enable, Input: l.D1Input, Abs: l.D1Abs}
		lc.ClampHighlights = l.ClampHighlights
	}

	if tx.Texture3Enable {
		p := &tx.ProcTex
		cfg.ProcTex = ProcTexConfig{
			Enable:        true,
			Coord:         min(tx.Texture3Coords, 2),
			NoiseEnable:   p.NoiseEnable,
			UClamp:        p.UClamp,
			VClamp:        p.VClamp,
			ColorCombiner: p.ColorCombiner,
			AlphaCombiner: p.AlphaCombiner,
			SeparateAlpha: p.SeparateAlpha,
			LUTFilter:     p.LUTFilter,
		}
	}

	if om.AlphaBlendEnable {
		if emulateMinMax && (isMinMax(om.ColorEquation) || isMinMax(om.AlphaEquation)) {
			cfg.Blend = BlendConfig{
				Enable:   true,
				ColorEq:  om.ColorEquation,
				AlphaEq:  om.AlphaEquation,
				ColorSrc: om.ColorSrc,
				ColorDst: om.ColorDst,
				AlphaSrc: om.AlphaSrc,
				AlphaDst: om.AlphaDst,
			}
		}
	} else if om.LogicOp != regs.LogicNoOp {
		cfg.LogicOp = om.LogicOp
	}
	return cfg
}

// Hash returns a stable 64-bit key for disk caching.
func (c *FSConfig) Hash() uint64 { return hashValue(c) }

func isMinMax(eq regs.BlendEquation) bool {
	return eq == regs.BlendMin || eq == regs.BlendMax
}

func hashValue(v any) uint64 {
	h := fnv.New64a()
	_ = binary.Write(h, binary.LittleEndian, v)
	return h.Sum64()
}

func hashWords(words []uint32) uint64 {
	h := fnv.New64a()
	var b [4]byte
	for _, w := range words {
		binary.LittleEndian.PutUint32(b[:], w)
		h.Write(b[:])
	}
	return h.Sum64()
}
