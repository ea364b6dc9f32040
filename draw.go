package pica

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/rescache"
	"github.com/gogpu/pica/internal/shader"
	"github.com/gogpu/pica/internal/state"
	"github.com/gogpu/pica/internal/stream"
	"github.com/gogpu/pica/regs"
)

// HardwareVertex is a vertex already transformed on the CPU.
type HardwareVertex struct {
	Position   [4]float32
	Quat       [4]float32
	Color      [4]float32
	TexCoord0  [2]float32
	TexCoord1  [2]float32
	TexCoord2  [2]float32
	TexCoord0W float32
	View       [3]float32
}

// encode writes the vertex in the software path layout.
func (v *HardwareVertex) encode(dst []byte) {
	f := [shader.HWVertexStride / 4]float32{
		v.Position[0], v.Position[1], v.Position[2], v.Position[3],
		v.Color[0], v.Color[1], v.Color[2], v.Color[3],
		v.TexCoord0[0], v.TexCoord0[1], v.TexCoord1[0], v.TexCoord1[1],
		v.TexCoord2[0], v.TexCoord2[1], v.TexCoord0W, 0,
		v.Quat[0], v.Quat[1], v.Quat[2], v.Quat[3],
		v.View[0], v.View[1], v.View[2], 0,
	}
	for i, x := range f {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(x))
	}
}

var hwVertexLayout = func() gpucore.VertexLayout {
	l := gpucore.VertexLayout{Stride: shader.HWVertexStride, Mask: 1<<shader.HWVertexAttribs - 1}
	for i := 0; i < shader.HWVertexAttribs; i++ {
		l.Formats[i] = gputypes.VertexFormatFloat32x4
		l.Offsets[i] = uint32(i) * 16
	}
	return l
}()

func quatsOpposite(a, b [4]float32) bool {
	return a[0]*b[0]+a[1]*b[1]+a[2]*b[2]+a[3]*b[3] < 0
}

// AddTriangle queues a CPU-processed triangle. Quaternions of v1 and v2
// are negated when they point away from v0 so that interpolation takes
// the short path.
func (r *Rasterizer) AddTriangle(v0, v1, v2 HardwareVertex) {
	if quatsOpposite(v0.Quat, v1.Quat) {
		v1.Quat = [4]float32{-v1.Quat[0], -v1.Quat[1], -v1.Quat[2], -v1.Quat[3]}
	}
	if quatsOpposite(v0.Quat, v2.Quat) {
		v2.Quat = [4]float32{-v2.Quat[0], -v2.Quat[1], -v2.Quat[2], -v2.Quat[3]}
	}
	r.batch = append(r.batch, v0, v1, v2)
}

// DrawTriangles draws the queued software triangles.
func (r *Rasterizer) DrawTriangles() {
	if len(r.batch) == 0 {
		return
	}
	m := r.manager()
	m.UseTrivialGeometryShader()
	if err := m.UseTrivialVertexShader(); err != nil {
		Logger().Warn("pica: trivial vertex shader unavailable", "err", err)
		r.batch = r.batch[:0]
		return
	}
	r.Draw(false, false)
}

// AccelerateDrawBatch draws the current batch with the guest vertex program
// on the host. It reports false when the configuration cannot be expressed,
// in which case the caller processes the vertices on the CPU.
func (r *Rasterizer) AccelerateDrawBatch(indexed bool) bool {
	p := &r.st.Regs.Pipeline
	if p.UseGS != regs.GSNo {
		if p.GSMode != regs.GSPoint || p.Topology != regs.TopologyShader {
			r.stats.Fallbacks++
			return false
		}
	}
	if p.UseGS != regs.GSNo {
		Logger().Debug("pica: geometry programs run on the CPU")
		r.stats.Fallbacks++
		return false
	}

	// The geometry epilogue is part of the vertex module, so it is chosen first.
	m := r.manager()
	if r.st.Regs.Lighting.Disable {
		m.UseTrivialGeometryShader()
	} else {
		m.UseFixedGeometryShader(&r.st.Regs)
	}
	if !m.UseProgrammableVertexShader(&r.st.Regs, &r.st.VS) {
		Logger().Debug("pica: vertex program not translatable")
		r.stats.Fallbacks++
		return false
	}
	if !r.Draw(true, indexed) {
		r.stats.Fallbacks++
		return false
	}
	return true
}

// viewportRect returns the guest viewport in unscaled framebuffer pixels.
func viewportRect(ras *regs.RasterizerRegs) gpucore.Rect {
	w := uint32(max(ras.ViewportSizeX*2, 0))
	h := uint32(max(ras.ViewportSizeY*2, 0))
	x, y := ras.ViewportCornerX, ras.ViewportCornerY
	var left, top uint32
	if x > 0 {
		left = uint32(x)
	}
	if y > 0 {
		top = uint32(y)
	}
	right := int64(x) + int64(w)
	bottom := int64(y) + int64(h)
	return gpucore.Rect{Left: left, Top: top, Right: uint32(max(right, 0)), Bottom: uint32(max(bottom, 0))}
}

// Draw runs the per-draw protocol: state sync, framebuffer resolution,
// textures, programs, lookup tables, uniforms and finally the host draw of
// either the accelerated batch or the software triangles. It reports
// whether the batch was drawn.
func (r *Rasterizer) Draw(accelerate, indexed bool) bool {
	b := &r.st.Regs
	fbRegs := &b.Framebuffer
	shadow := fbRegs.IsShadowRendering()
	defer func() { r.batch = r.batch[:0] }()

	r.mirror.SyncAll(b)
	cur := &r.mirror.Cur

	hasStencil := fbRegs.HasStencil()
	ds := &cur.DepthStencil
	writeColor := shadow || cur.ColorWriteEnabled()
	writeDepth := (ds.DepthTestEnable && ds.DepthWriteEnable) ||
		(hasStencil && ds.StencilTestEnable && ds.StencilWriteMask != 0)
	usingColor := fbRegs.ColorAddr != 0 && writeColor
	usingDepth := !shadow && fbRegs.DepthAddr != 0 &&
		(writeDepth || fbRegs.OutputMerger.DepthTestEnable || (hasStencil && ds.StencilTestEnable))

	vp := viewportRect(&b.Rasterizer)
	fb := r.cache.GetFramebufferSurfaces(usingColor, usingDepth, fbRegs, vp)
	if fb.Color == nil && shadow {
		r.stats.SkippedDraws++
		return true
	}

	s := float32(fb.Scale)
	cur.Viewport = gpucore.Viewport{
		X:      float32(b.Rasterizer.ViewportCornerX) * s,
		Y:      float32(b.Rasterizer.ViewportCornerY) * s,
		Width:  b.Rasterizer.ViewportSizeX * 2 * s,
		Height: b.Rasterizer.ViewportSizeY * 2 * s,
	}
	cur.Scissor = gpucore.Scissor{Enabled: true, Rect: fb.Rect}
	cur.Targets = fb.Targets()
	if shadow {
		cur.Targets.Depth = r.shadowTarget(fb.Color)
		cur.DepthStencil = shadowDepthState
	}

	prevFS, prevVS := r.fsu, r.vsu
	r.fsu.SyncRegs(b, fb.Scale, 0, 0)
	r.vsu.SyncRegs(b)
	if r.fsu != prevFS {
		r.fsDirty = true
	}
	if r.vsu != prevVS {
		r.vsDirty = true
	}

	r.SyncTextureUnits(&fb)

	m := r.manager()
	if !m.UseFragmentShader(b, r.mirror.EmulateMinMaxBlend) {
		Logger().Warn("pica: fragment program unavailable, using pass-through")
	}
	m.ApplyTo(cur)

	r.SyncLightingLUTs()
	r.SyncProcTexLUTs()
	r.UploadUniforms(accelerate)

	var ok bool
	if accelerate {
		ok = r.drawAccelerated(indexed)
	} else {
		ok = r.drawSoftware()
	}

	if shadow {
		r.dev.Barrier()
		r.stats.Barriers++
	}
	if ok {
		r.cache.InvalidateRenderTargets(&fb, writeColor, writeDepth)
	}
	if shadow {
		r.shadowDrawn(fb.Color)
	}
	return ok
}

// drawSoftware streams the software batch in chunks that fit the vertex ring.
func (r *Rasterizer) drawSoftware() bool {
	const maxVertices = 3 * (VertexBufferSize / (3 * shader.HWVertexStride))
	cur := &r.mirror.Cur
	for base := 0; base < len(r.batch); base += maxVertices {
		verts := r.batch[base:min(base+maxVertices, len(r.batch))]
		size := uint64(len(verts) * shader.HWVertexStride)
		region, err := r.vertexRing.Map(size, shader.HWVertexStride)
		if err != nil {
			Logger().Warn("pica: software vertex upload", "err", err)
			return false
		}
		if region.Invalidated {
			r.ringWrapped(r.vertexRing)
		}
		for i := range verts {
			verts[i].encode(region.Data[i*shader.HWVertexStride:])
		}
		if err := r.vertexRing.Unmap(size); err != nil {
			Logger().Warn("pica: software vertex upload", "err", err)
			return false
		}
		cur.VertexBuffer = gpucore.VertexBufferBinding{Buffer: r.vertexRing.ID(), Layout: hwVertexLayout}
		r.mirror.Apply(r.dev)
		first := uint32(region.Offset / shader.HWVertexStride)
		if err := r.dev.Draw(gputypes.PrimitiveTopologyTriangleList, uint32(len(verts)), first); err != nil {
			Logger().Warn("pica: software draw", "err", err)
			return false
		}
		r.stats.Draws++
	}
	r.stats.SoftwareDraws++
	return true
}

// drawAccelerated streams the referenced vertex range and the indices and
// issues the host draw.
func (r *Rasterizer) drawAccelerated(indexed bool) bool {
	p := &r.st.Regs.Pipeline
	info, ok := r.AnalyzeVertexArray(indexed)
	if !ok {
		return false
	}
	if info.HostSize > VertexBufferSize {
		Logger().Warn("pica: vertex array exceeds buffer", "size", info.HostSize, "capacity", VertexBufferSize)
		return false
	}

	region, err := r.vertexRing.Map(info.HostSize, 16)
	if err != nil {
		Logger().Warn("pica: vertex upload", "err", err)
		return false
	}
	if region.Invalidated {
		r.ringWrapped(r.vertexRing)
	}
	layout, ok := r.SetupVertexArray(region.Data, info)
	if !ok {
		_ = r.vertexRing.Unmap(0)
		return false
	}
	if err := r.vertexRing.Unmap(info.HostSize); err != nil {
		Logger().Warn("pica: vertex upload", "err", err)
		return false
	}
	cur := &r.mirror.Cur
	cur.VertexBuffer = gpucore.VertexBufferBinding{Buffer: r.vertexRing.ID(), Offset: region.Offset, Layout: layout}

	topology := state.PrimitiveTopology(p.Topology)
	if !indexed && p.Topology != regs.TopologyFan {
		r.mirror.Apply(r.dev)
		if err := r.dev.Draw(topology, p.NumVertices, 0); err != nil {
			Logger().Warn("pica: draw", "err", err)
			return false
		}
		r.stats.Draws++
		r.stats.AcceleratedDraws++
		return true
	}

	indices, ok := r.readIndices(indexed, info)
	if !ok {
		return false
	}
	if p.Topology == regs.TopologyFan {
		indices = fanToList(indices)
	}
	if len(indices) == 0 {
		return true
	}
	size := alignUp(uint64(len(indices))*2, 4)
	if size > IndexBufferSize {
		Logger().Warn("pica: index array exceeds buffer", "size", size, "capacity", IndexBufferSize)
		return false
	}
	ir, err := r.indexRing.Map(size, 4)
	if err != nil {
		Logger().Warn("pica: index upload", "err", err)
		return false
	}
	if ir.Invalidated {
		r.ringWrapped(r.indexRing)
	}
	for i, idx := range indices {
		binary.LittleEndian.PutUint16(ir.Data[i*2:], idx)
	}
	clear(ir.Data[len(indices)*2:])
	if err := r.indexRing.Unmap(size); err != nil {
		Logger().Warn("pica: index upload", "err", err)
		return false
	}
	cur.IndexBuffer = gpucore.IndexBufferBinding{Buffer: r.indexRing.ID(), Offset: ir.Offset, Format: gputypes.IndexFormatUint16}
	r.mirror.Apply(r.dev)

	// Indexed vertex data starts at the smallest referenced vertex.
	var baseVertex int32
	if indexed {
		baseVertex = -int32(info.Min)
	}
	if err := r.dev.DrawIndexed(topology, uint32(len(indices)), 0, baseVertex); err != nil {
		Logger().Warn("pica: indexed draw", "err", err)
		return false
	}
	r.stats.Draws++
	r.stats.AcceleratedDraws++
	return true
}

func (r *Rasterizer) ringWrapped(b *stream.Buffer) {
	Logger().Debug("pica: streaming buffer wrapped", "buffer", b.Label(), "wraps", b.Wraps())
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}

// framebufferColor is the color target of fb, used by feedback checks.
func framebufferColor(fb *rescache.Framebuffer) gpucore.TextureID {
	if fb == nil || fb.Color == nil {
		return gpucore.InvalidID
	}
	return fb.Color.Handle()
}
