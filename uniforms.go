package pica

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/shader"
	"github.com/gogpu/pica/regs"
)

type vec2 = [2]float32

type vec4 = [4]float32

// lutCache holds the last uploaded tables so that a dirty flag without a
// content change costs no upload.
type lutCache struct {
	lighting [regs.NumLightingSamplers][regs.LightingLUTSize]vec2
	fog      [regs.FogLUTSize]vec2

	noise    [regs.ProcTexLUTSize]vec2
	colorMap [regs.ProcTexLUTSize]vec2
	alphaMap [regs.ProcTexLUTSize]vec2
	color    [regs.ProcTexColorLUTSize]vec4
	diff     [regs.ProcTexColorLUTSize]vec4
}

// Worst case sizes of one lookup table upload.
const (
	lutLFMaxSize      = 8*regs.LightingLUTSize*regs.NumLightingSamplers + 8*regs.FogLUTSize
	lutProcTexMaxSize = 8*regs.ProcTexLUTSize*3 + 16*regs.ProcTexColorLUTSize*2
)

func putVec2s(dst []byte, v []vec2) {
	for i, e := range v {
		binary.LittleEndian.PutUint32(dst[i*8:], math.Float32bits(e[0]))
		binary.LittleEndian.PutUint32(dst[i*8+4:], math.Float32bits(e[1]))
	}
}

func putVec4s(dst []byte, v []vec4) {
	for i, e := range v {
		putVec4(dst[i*16:], e)
	}
}

// lutWriter appends tables to a mapped ring region.
type lutWriter struct {
	data []byte
	base uint64
	used uint64
}

// vec2Table appends a table and returns its offset in vec2 units.
func (w *lutWriter) vec2Table(t []vec2) float32 {
	off := (w.base + w.used) / 8
	putVec2s(w.data[w.used:], t)
	w.used += uint64(len(t)) * 8
	return float32(off)
}

// vec4Table appends a table and returns its offset in vec4 units.
func (w *lutWriter) vec4Table(t []vec4) float32 {
	off := (w.base + w.used) / 16
	putVec4s(w.data[w.used:], t)
	w.used += uint64(len(t)) * 16
	return float32(off)
}

// SyncLightingLUTs uploads the dirty lighting and fog tables and records
// their offsets in the fragment uniforms.
func (r *Rasterizer) SyncLightingLUTs() {
	d := &r.st.Dirty
	if d.LightingLUT == 0 && !d.FogLUT {
		return
	}
	region, err := r.lutLF.Map(lutLFMaxSize, 16)
	if err != nil {
		Logger().Warn("pica: lighting lut upload", "err", err)
		return
	}
	inv := region.Invalidated
	if inv {
		r.ringWrapped(r.lutLF)
	}
	w := lutWriter{data: region.Data, base: region.Offset}

	for i := 0; i < regs.NumLightingSamplers; i++ {
		if d.LightingLUT&(1<<uint(i)) == 0 && !inv {
			continue
		}
		var t [regs.LightingLUTSize]vec2
		for k, e := range &r.st.LUT.Lighting[i] {
			t[k] = vec2{e.ToFloat(), e.DiffToFloat()}
		}
		if t != r.luts.lighting[i] || inv {
			r.luts.lighting[i] = t
			r.fsu.LightingLUTOffset[i] = w.vec2Table(t[:])
			r.fsDirty = true
		}
	}
	d.LightingLUT = 0

	if d.FogLUT || inv {
		var t [regs.FogLUTSize]vec2
		for k, e := range &r.st.LUT.Fog {
			t[k] = vec2{e.ToFloat(), e.DiffToFloat()}
		}
		if t != r.luts.fog || inv {
			r.luts.fog = t
			r.fsu.FogLUTOffset = w.vec2Table(t[:])
			r.fsDirty = true
		}
		d.FogLUT = false
	}

	if err := r.lutLF.Unmap(w.used); err != nil {
		Logger().Warn("pica: lighting lut upload", "err", err)
	}
}

func procTexValues(src *[regs.ProcTexLUTSize]regs.ProcTexLUTEntry) [regs.ProcTexLUTSize]vec2 {
	var t [regs.ProcTexLUTSize]vec2
	for k, e := range src {
		t[k] = vec2{e.ToFloat(), e.DiffToFloat()}
	}
	return t
}

// SyncProcTexLUTs uploads the dirty procedural texture tables.
func (r *Rasterizer) SyncProcTexLUTs() {
	d := &r.st.Dirty
	if !d.ProcTexNoise && !d.ProcTexColorMap && !d.ProcTexAlphaMap && !d.ProcTexLUT && !d.ProcTexDiffLUT {
		return
	}
	region, err := r.lutProcTex.Map(lutProcTexMaxSize, 16)
	if err != nil {
		Logger().Warn("pica: proctex lut upload", "err", err)
		return
	}
	inv := region.Invalidated
	if inv {
		r.ringWrapped(r.lutProcTex)
	}
	w := lutWriter{data: region.Data, base: region.Offset}
	lut := &r.st.LUT

	values := []struct {
		dirty  *bool
		src    *[regs.ProcTexLUTSize]regs.ProcTexLUTEntry
		cached *[regs.ProcTexLUTSize]vec2
		offset *float32
	}{
		{&d.ProcTexNoise, &lut.ProcTexNoise, &r.luts.noise, &r.fsu.ProcTexNoiseOffset},
		{&d.ProcTexColorMap, &lut.ProcTexColorMap, &r.luts.colorMap, &r.fsu.ProcTexColorMapOffset},
		{&d.ProcTexAlphaMap, &lut.ProcTexAlphaMap, &r.luts.alphaMap, &r.fsu.ProcTexAlphaMapOffset},
	}
	for _, v := range values {
		if !*v.dirty && !inv {
			continue
		}
		if t := procTexValues(v.src); t != *v.cached || inv {
			*v.cached = t
			*v.offset = w.vec2Table(t[:])
			r.fsDirty = true
		}
		*v.dirty = false
	}

	colors := []struct {
		dirty  *bool
		conv   func(regs.ProcTexColor) vec4
		cached *[regs.ProcTexColorLUTSize]vec4
		offset *float32
	}{
		{&d.ProcTexLUT, regs.ProcTexColor.ToVec4, &r.luts.color, &r.fsu.ProcTexColorOffset},
		{&d.ProcTexDiffLUT, regs.ProcTexColor.DiffToVec4, &r.luts.diff, &r.fsu.ProcTexDiffOffset},
	}
	srcs := [2]*[regs.ProcTexColorLUTSize]regs.ProcTexColor{&lut.ProcTexColor, &lut.ProcTexDiff}
	for i, c := range colors {
		if !*c.dirty && !inv {
			continue
		}
		var t [regs.ProcTexColorLUTSize]vec4
		for k, e := range srcs[i] {
			t[k] = c.conv(e)
		}
		if t != *c.cached || inv {
			*c.cached = t
			*c.offset = w.vec4Table(t[:])
			r.fsDirty = true
		}
		*c.dirty = false
	}

	if err := r.lutProcTex.Unmap(w.used); err != nil {
		Logger().Warn("pica: proctex lut upload", "err", err)
	}
}

// UploadUniforms streams the uniform blocks whose contents changed. The
// guest uniform block is only needed by accelerated draws. After a ring
// wrap every block is written again.
func (r *Rasterizer) UploadUniforms(accelerate bool) {
	syncPica := accelerate && (r.st.Dirty.VSUniforms || !r.picaValid)
	if !r.vsDirty && !r.fsDirty && !syncPica {
		return
	}

	a := r.uniformAlign
	vsSize := alignUp(shader.VSUniformSize, a)
	fsSize := alignUp(shader.FSUniformSize, a)
	picaSize := alignUp(shader.VSPicaUniformSize, a)
	region, err := r.uniformRing.Map(vsSize+fsSize+picaSize, a)
	if err != nil {
		Logger().Warn("pica: uniform upload", "err", err)
		return
	}
	inv := region.Invalidated
	if inv {
		// Earlier blocks may be overwritten, including the guest uniforms.
		r.ringWrapped(r.uniformRing)
		r.picaValid = false
		syncPica = accelerate
	}

	bufs := &r.mirror.Cur.Buffers
	var used uint64
	bind := func(slot gpucore.BufferSlot, size uint64) {
		bufs[slot] = gpucore.BufferBinding{Buffer: r.uniformRing.ID(), Offset: region.Offset + used, Size: size}
	}
	if r.vsDirty || inv {
		r.vsu.Encode(region.Data[used:])
		bind(gpucore.BufferVSUniforms, shader.VSUniformSize)
		r.vsDirty = false
		used += vsSize
	}
	if r.fsDirty || inv {
		r.fsu.Encode(region.Data[used:])
		bind(gpucore.BufferFSUniforms, shader.FSUniformSize)
		r.fsDirty = false
		used += fsSize
	}
	if syncPica {
		shader.EncodeVSPicaUniforms(region.Data[used:], &r.st.VS, &r.st.Regs.VS)
		bind(gpucore.BufferVSPicaUniforms, shader.VSPicaUniformSize)
		r.st.Dirty.VSUniforms = false
		r.picaValid = true
		used += picaSize
	}
	if err := r.uniformRing.Unmap(used); err != nil {
		Logger().Warn("pica: uniform upload", "err", err)
	}
}
