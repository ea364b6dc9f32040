package regs

// Lighting LUT sampler indices.
const (
	LightingSamplerD0 = 0
	LightingSamplerD1 = 1
	LightingSamplerFR = 3
	LightingSamplerRB = 4
	LightingSamplerRG = 5
	LightingSamplerRR = 6
	LightingSamplerSP = 8
	LightingSamplerDA = 16

	NumLightingSamplers = 24
	LightingLUTSize     = 256
	FogLUTSize          = 128
	ProcTexLUTSize      = 128
	ProcTexColorLUTSize = 256
)

// LightingLUTEntry packs a 12-bit unsigned value and a 12-bit signed delta.
type LightingLUTEntry uint32

// MakeLightingLUTEntry encodes a value/delta pair in fixed point.
func MakeLightingLUTEntry(value uint32, diff int32) LightingLUTEntry {
	return LightingLUTEntry(value&0xfff | uint32(diff&0xfff)<<12)
}

// ToFloat returns the sampled value in [0, 1].
func (e LightingLUTEntry) ToFloat() float32 {
	return float32(uint32(e)&0xfff) / 4095.0
}

// DiffToFloat returns the delta to the next entry.
func (e LightingLUTEntry) DiffToFloat() float32 {
	return float32(signExtend(uint32(e)>>12, 12)) / 4095.0
}

// FogLUTEntry packs a 13-bit signed delta and an 11-bit unsigned value.
type FogLUTEntry uint32

// MakeFogLUTEntry encodes a value/delta pair in fixed point.
func MakeFogLUTEntry(value uint32, diff int32) FogLUTEntry {
	return FogLUTEntry(uint32(diff)&0x1fff | (value&0x7ff)<<13)
}

// ToFloat returns the fog factor.
func (e FogLUTEntry) ToFloat() float32 {
	return float32((uint32(e)>>13)&0x7ff) / 2047.0
}

// DiffToFloat returns the delta to the next entry.
func (e FogLUTEntry) DiffToFloat() float32 {
	return float32(signExtend(uint32(e), 13)) / 2047.0
}

// ProcTexLUTEntry is a noise, color map or alpha map entry.
type ProcTexLUTEntry uint32

// MakeProcTexLUTEntry encodes a value/delta pair in fixed point.
func MakeProcTexLUTEntry(value uint32, diff int32) ProcTexLUTEntry {
	return ProcTexLUTEntry(value&0xfff | uint32(diff&0xfff)<<12)
}

// ToFloat returns the value in [0, 1].
func (e ProcTexLUTEntry) ToFloat() float32 {
	return float32(uint32(e)&0xfff) / 4095.0
}

// DiffToFloat returns the delta to the next entry.
func (e ProcTexLUTEntry) DiffToFloat() float32 {
	return float32(signExtend(uint32(e)>>12, 12)) / 4095.0
}

// ProcTexColor is an RGBA8 entry of the procedural texture color table.
type ProcTexColor uint32

// ToVec4 returns the normalized color.
func (c ProcTexColor) ToVec4() [4]float32 {
	return [4]float32{
		float32(c&0xff) / 255,
		float32((c>>8)&0xff) / 255,
		float32((c>>16)&0xff) / 255,
		float32((c>>24)&0xff) / 255,
	}
}

// DiffToVec4 interprets each channel as a signed delta.
func (c ProcTexColor) DiffToVec4() [4]float32 {
	var out [4]float32
	for i := range out {
		out[i] = float32(int8(c>>(8*uint(i)))) / 255
	}
	return out
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// LUTs hold the lookup tables uploaded by the guest.
type LUTs struct {
	Lighting        [NumLightingSamplers][LightingLUTSize]LightingLUTEntry
	Fog             [FogLUTSize]FogLUTEntry
	ProcTexNoise    [ProcTexLUTSize]ProcTexLUTEntry
	ProcTexColorMap [ProcTexLUTSize]ProcTexLUTEntry
	ProcTexAlphaMap [ProcTexLUTSize]ProcTexLUTEntry
	ProcTexColor    [ProcTexColorLUTSize]ProcTexColor
	ProcTexDiff     [ProcTexColorLUTSize]ProcTexColor
}
