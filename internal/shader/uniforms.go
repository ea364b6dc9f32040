package shader

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/pica/regs"
)

// Fragment uniform slots. Each slot is one vec4 in the generated block.
const (
	fsuAlphaDepth     = 0 // alpha ref, depth scale, depth offset, shadow texture bias
	fsuScissor        = 1 // x1, y1, x2, y2 in scaled pixels
	fsuMisc           = 2 // fog lut offset, d0 scale, d1 scale
	fsuFogColor       = 3
	fsuCombinerBuffer = 4
	fsuConstColor     = 5  // six slots
	fsuBorderColor    = 11 // three slots
	fsuAmbient        = 14
	fsuLights         = 15 // NumLights * fsuLightStride slots
	fsuLightStride    = 6
	fsuLightingLUT    = fsuLights + regs.NumLights*fsuLightStride // six slots
	fsuProcTexNoise   = fsuLightingLUT + regs.NumLightingSamplers/4
	fsuProcTexNoise2  = fsuProcTexNoise + 1 // v frequency, v phase, bias, lut width
	fsuProcTexOffsets = fsuProcTexNoise + 2 // noise, color map, alpha map, lut offset
	fsuProcTexColor   = fsuProcTexNoise + 3 // color table, diff table, lut base
	fsuBlendColor     = fsuProcTexNoise + 4
	fsuLodBias        = fsuProcTexNoise + 5

	// FSUniformSlots is the vec4 count of the fragment uniform block.
	FSUniformSlots = fsuLodBias + 1
)

// Light slot offsets inside one light.
const (
	lightSpecular0 = iota
	lightSpecular1
	lightDiffuse
	lightAmbient
	lightPosition
	lightDistAtten
)

// Vertex uniform slots.
const (
	vsuClipCoef = 0
	vsuFlags    = 1 // y flip sign, clip enable

	// VSUniformSlots is the vec4 count of the vertex uniform block.
	VSUniformSlots = 2
)

// Guest vertex shader uniform slots: float registers, then integer
// registers, then the boolean mask.
const (
	picaInt  = regs.NumFloatUniforms
	picaBool = picaInt + regs.NumIntUniforms

	// VSPicaUniformSlots is the vec4 count of the guest uniform block.
	VSPicaUniformSlots = picaBool + 1
)

// Uniform block sizes in bytes.
const (
	FSUniformSize     = FSUniformSlots * 16
	VSUniformSize     = VSUniformSlots * 16
	VSPicaUniformSize = VSPicaUniformSlots * 16
)

// LightUniforms are the values of one fragment light.
type LightUniforms struct {
	Specular0      [3]float32
	Specular1      [3]float32
	Diffuse        [3]float32
	Ambient        [3]float32
	Position       [3]float32
	DistAttenBias  float32
	DistAttenScale float32
}

// FSUniforms is the fragment uniform block. It is comparable so callers
// can skip uploads of unchanged values.
type FSUniforms struct {
	AlphaTestRef      float32
	DepthScale        float32
	DepthOffset       float32
	ShadowTextureBias float32

	Scissor [4]float32

	FogLUTOffset float32
	FogColor     [3]float32
	D0Scale      float32
	D1Scale      float32

	CombinerBufferColor [4]float32
	ConstColor          [regs.NumTevStages][4]float32
	BorderColor         [regs.NumTextureUnits][4]float32
	GlobalAmbient       [3]float32

	Lights            [regs.NumLights]LightUniforms
	LightingLUTOffset [regs.NumLightingSamplers]float32

	ProcTexNoiseU         regs.ProcTexNoise
	ProcTexNoiseV         regs.ProcTexNoise
	ProcTexBias           float32
	ProcTexLUTWidth       float32
	ProcTexNoiseOffset    float32
	ProcTexColorMapOffset float32
	ProcTexAlphaMapOffset float32
	ProcTexLUTOffset      float32
	ProcTexColorOffset    float32
	ProcTexDiffOffset     float32

	BlendColor [4]float32
	LodBias    [regs.NumTextureUnits]float32
}

func color8(c [4]uint8) [4]float32 {
	return [4]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, float32(c[3]) / 255}
}

func color3(c [3]uint8) [3]float32 {
	return [3]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255}
}

// SyncRegs copies the register-derived values. Lookup table offsets are
// set by the caller after the tables are uploaded. scale is the
// framebuffer resolution scale and origin the scaled position of the
// framebuffer inside its surface.
func (u *FSUniforms) SyncRegs(r *regs.Block, scale uint32, originX, originY float32) {
	om := &r.Framebuffer.OutputMerger
	tx := &r.Texturing
	s := float32(scale)

	u.AlphaTestRef = float32(om.AlphaTestRef) / 255
	u.DepthScale = r.Rasterizer.DepthScale
	u.DepthOffset = r.Rasterizer.DepthOffset
	u.ShadowTextureBias = float32(tx.Units[0].Config.ShadowBias) / 16777215

	sc := &r.Rasterizer.Scissor
	u.Scissor = [4]float32{
		originX + float32(sc.X1)*s,
		originY + float32(sc.Y1)*s,
		originX + float32(sc.X2+1)*s,
		originY + float32(sc.Y2+1)*s,
	}
	u.FogColor = color3(tx.FogColor)

	u.CombinerBufferColor = color8(tx.CombinerBufferInit)
	for i := range u.ConstColor {
		u.ConstColor[i] = color8(tx.TevStages[i].ConstColor)
	}
	for i := range u.BorderColor {
		u.BorderColor[i] = color8(tx.Units[i].Config.BorderColor)
		u.LodBias[i] = tx.Units[i].Config.LodBias
	}

	l := &r.Lighting
	u.GlobalAmbient = color3(l.GlobalAmbient)
	u.D0Scale = l.D0Scale
	u.D1Scale = l.D1Scale
	for i := range u.Lights {
		src := &l.Lights[i]
		u.Lights[i] = LightUniforms{
			Specular0:      color3(src.Specular0),
			Specular1:      color3(src.Specular1),
			Diffuse:        color3(src.Diffuse),
			Ambient:        color3(src.Ambient),
			Position:       src.Position,
			DistAttenBias:  src.DistAttenBias,
			DistAttenScale: src.DistAttenScale,
		}
	}

	p := &tx.ProcTex
	u.ProcTexNoiseU = p.NoiseU
	u.ProcTexNoiseV = p.NoiseV
	u.ProcTexBias = p.Bias
	u.ProcTexLUTWidth = float32(p.LUTWidth)
	u.ProcTexLUTOffset = float32(p.LUTOffset)

	u.BlendColor = color8(om.BlendConst)
}

type slotWriter []byte

func (w slotWriter) put(slot int, v ...float32) {
	off := slot * 16
	for i, f := range v {
		binary.LittleEndian.PutUint32(w[off+i*4:], math.Float32bits(f))
	}
}

func (w slotWriter) put3(slot int, v [3]float32) { w.put(slot, v[0], v[1], v[2]) }

func (w slotWriter) put4(slot int, v [4]float32) { w.put(slot, v[0], v[1], v[2], v[3]) }

// Encode writes the block into dst, which must hold FSUniformSize bytes.
func (u *FSUniforms) Encode(dst []byte) {
	clear(dst[:FSUniformSize])
	w := slotWriter(dst)
	w.put(fsuAlphaDepth, u.AlphaTestRef, u.DepthScale, u.DepthOffset, u.ShadowTextureBias)
	w.put4(fsuScissor, u.Scissor)
	w.put(fsuMisc, u.FogLUTOffset, u.D0Scale, u.D1Scale)
	w.put3(fsuFogColor, u.FogColor)
	w.put4(fsuCombinerBuffer, u.CombinerBufferColor)
	for i, c := range u.ConstColor {
		w.put4(fsuConstColor+i, c)
	}
	for i, c := range u.BorderColor {
		w.put4(fsuBorderColor+i, c)
	}
	w.put3(fsuAmbient, u.GlobalAmbient)
	for i := range u.Lights {
		l := &u.Lights[i]
		base := fsuLights + i*fsuLightStride
		w.put3(base+lightSpecular0, l.Specular0)
		w.put3(base+lightSpecular1, l.Specular1)
		w.put3(base+lightDiffuse, l.Diffuse)
		w.put3(base+lightAmbient, l.Ambient)
		w.put3(base+lightPosition, l.Position)
		w.put(base+lightDistAtten, l.DistAttenBias, l.DistAttenScale)
	}
	for i := 0; i < regs.NumLightingSamplers; i += 4 {
		o := u.LightingLUTOffset[i : i+4]
		w.put(fsuLightingLUT+i/4, o[0], o[1], o[2], o[3])
	}
	w.put(fsuProcTexNoise, u.ProcTexNoiseU.Amplitude, u.ProcTexNoiseU.Frequency, u.ProcTexNoiseU.Phase, u.ProcTexNoiseV.Amplitude)
	w.put(fsuProcTexNoise2, u.ProcTexNoiseV.Frequency, u.ProcTexNoiseV.Phase, u.ProcTexBias, u.ProcTexLUTWidth)
	w.put(fsuProcTexOffsets, u.ProcTexNoiseOffset, u.ProcTexColorMapOffset, u.ProcTexAlphaMapOffset, u.ProcTexLUTOffset)
	w.put(fsuProcTexColor, u.ProcTexColorOffset, u.ProcTexDiffOffset)
	w.put4(fsuBlendColor, u.BlendColor)
	w.put(fsuLodBias, u.LodBias[0], u.LodBias[1], u.LodBias[2])
}

// VSUniforms is the vertex uniform block.
type VSUniforms struct {
	ClipCoef   [4]float32
	FlipY      bool
	ClipEnable bool
}

// SyncRegs copies the clip plane state.
func (u *VSUniforms) SyncRegs(r *regs.Block) {
	u.ClipCoef = r.Rasterizer.ClipCoef
	u.ClipEnable = r.Rasterizer.ClipEnable
}

// Encode writes the block into dst, which must hold VSUniformSize bytes.
func (u *VSUniforms) Encode(dst []byte) {
	clear(dst[:VSUniformSize])
	w := slotWriter(dst)
	w.put4(vsuClipCoef, u.ClipCoef)
	flip, clip := float32(1), float32(0)
	if u.FlipY {
		flip = -1
	}
	if u.ClipEnable {
		clip = 1
	}
	w.put(vsuFlags, flip, clip)
}

// EncodeVSPicaUniforms writes the guest float, integer and boolean
// uniforms into dst, which must hold VSPicaUniformSize bytes. Integer
// registers are stored as floats; the boolean mask is stored as a float
// in the x component of the last slot.
func EncodeVSPicaUniforms(dst []byte, setup *regs.VSSetup, vs *regs.ShaderRegs) {
	w := slotWriter(dst)
	for i, f := range setup.Float {
		w.put4(i, f)
	}
	for i, iv := range vs.IntUniforms {
		w.put(picaInt+i, float32(iv[0]), float32(iv[1]), float32(iv[2]), float32(iv[3]))
	}
	w.put(picaBool, float32(vs.BoolUniforms), 0, 0, 0)
}
