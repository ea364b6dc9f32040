package native

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/gpucore"
)

// fenceTimeout bounds every wait for the GPU.
const fenceTimeout = 5 * time.Second

type span struct{ start, end uint64 }

// frame is the command encoder being recorded.
type frame struct {
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	targets gpucore.RenderTargets

	draws int
	// reads holds the buffer bytes referenced by recorded commands.
	reads map[gpucore.BufferID]span
	// textures referenced by recorded commands.
	textures map[*texture]struct{}
	// garbage runs once the submission completed.
	garbage []func()
	scratch []*texture
}

func (f *frame) active() bool { return f.encoder != nil }

func (f *frame) uses(t *texture) bool {
	_, ok := f.textures[t]
	return ok
}

func (f *frame) use(ts ...*texture) {
	if f.textures == nil {
		f.textures = make(map[*texture]struct{})
	}
	for _, t := range ts {
		if t != nil {
			f.textures[t] = struct{}{}
		}
	}
}

func (f *frame) read(id gpucore.BufferID, offset, size uint64) {
	if id == gpucore.InvalidID {
		return
	}
	if f.reads == nil {
		f.reads = make(map[gpucore.BufferID]span)
	}
	s, ok := f.reads[id]
	if !ok {
		f.reads[id] = span{offset, offset + size}
		return
	}
	f.reads[id] = span{min(s.start, offset), max(s.end, offset+size)}
}

func (f *frame) reset() {
	clear(f.reads)
	clear(f.textures)
	f.encoder = nil
	f.pass = nil
	f.targets = gpucore.RenderTargets{}
	f.draws = 0
	f.garbage = f.garbage[:0]
}

// encoderLocked returns the open encoder, beginning one if needed.
func (d *Device) encoderLocked() (hal.CommandEncoder, error) {
	if d.frame.encoder != nil {
		return d.frame.encoder, nil
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "pica frame"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("pica frame"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	d.frame.encoder = enc
	return enc, nil
}

func (d *Device) endPassLocked() {
	if d.frame.pass != nil {
		d.frame.pass.End()
		d.frame.pass = nil
		d.frame.targets = gpucore.RenderTargets{}
	}
}

// transition records barriers moving ts to usage. It must not be called
// inside a render pass.
func (d *Device) transition(enc hal.CommandEncoder, usage gputypes.TextureUsage, ts ...*texture) {
	var barriers []hal.TextureBarrier
	for _, t := range ts {
		if t == nil || t.usage == usage {
			continue
		}
		barriers = append(barriers, hal.TextureBarrier{
			Texture: t.raw,
			Usage: hal.TextureUsageTransition{
				OldUsage: t.usage,
				NewUsage: usage,
			},
		})
		t.usage = usage
	}
	if len(barriers) > 0 {
		enc.TransitionTextures(barriers)
	}
}

// submitLocked submits the recorded commands and waits for completion.
func (d *Device) submitLocked() error {
	if d.frame.encoder == nil {
		return nil
	}
	defer d.frame.reset()
	d.endPassLocked()
	enc := d.frame.encoder
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("native: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("native: wait for GPU: %w", err)
	}
	if !ok {
		return ErrTimeout
	}
	for _, fn := range d.frame.garbage {
		fn()
	}
	d.logger().Debug("native: submitted", "draws", d.frame.draws)
	return nil
}

// === State slots ===

// SetBlendState implements gpucore.Device.
func (d *Device) SetBlendState(s gpucore.BlendState) { d.lock(func() { d.slots.blend = s }) }

// SetBlendConstant implements gpucore.Device.
func (d *Device) SetBlendConstant(c gputypes.Color) { d.lock(func() { d.slots.blendConst = c }) }

// SetColorWriteMask implements gpucore.Device.
func (d *Device) SetColorWriteMask(m gputypes.ColorWriteMask) {
	d.lock(func() { d.slots.writeMask = m })
}

// SetDepthStencilState implements gpucore.Device.
func (d *Device) SetDepthStencilState(s gpucore.DepthStencilState) {
	d.lock(func() { d.slots.depthStencil = s })
}

// SetStencilReference implements gpucore.Device.
func (d *Device) SetStencilReference(ref uint32) { d.lock(func() { d.slots.stencilRef = ref }) }

// SetRasterState implements gpucore.Device.
func (d *Device) SetRasterState(s gpucore.RasterState) { d.lock(func() { d.slots.raster = s }) }

// SetViewport implements gpucore.Device.
func (d *Device) SetViewport(v gpucore.Viewport) { d.lock(func() { d.slots.viewport = v }) }

// SetScissor implements gpucore.Device.
func (d *Device) SetScissor(s gpucore.Scissor) { d.lock(func() { d.slots.scissor = s }) }

// SetRenderTargets implements gpucore.Device.
func (d *Device) SetRenderTargets(t gpucore.RenderTargets) { d.lock(func() { d.slots.targets = t }) }

// BindTexture implements gpucore.Device.
func (d *Device) BindTexture(unit gpucore.TextureUnit, b gpucore.TextureBinding) {
	if unit < gpucore.NumTextureSlots {
		d.lock(func() { d.slots.textures[unit] = b })
	}
}

// BindImage implements gpucore.Device.
func (d *Device) BindImage(slot gpucore.ImageSlot, tex gpucore.TextureID) {
	if slot < gpucore.NumImageSlots {
		d.lock(func() { d.slots.images[slot] = tex })
	}
}

// BindBuffer implements gpucore.Device.
func (d *Device) BindBuffer(slot gpucore.BufferSlot, b gpucore.BufferBinding) {
	if slot < gpucore.NumBufferSlots {
		d.lock(func() { d.slots.buffers[slot] = b })
	}
}

// SetVertexBuffer implements gpucore.Device.
func (d *Device) SetVertexBuffer(b gpucore.VertexBufferBinding) {
	d.lock(func() { d.slots.vertex = b })
}

// SetIndexBuffer implements gpucore.Device.
func (d *Device) SetIndexBuffer(b gpucore.IndexBufferBinding) { d.lock(func() { d.slots.index = b }) }

// UsePrograms implements gpucore.Device.
func (d *Device) UsePrograms(p gpucore.Programs) { d.lock(func() { d.slots.programs = p }) }

func (d *Device) lock(fn func()) {
	d.mu.Lock()
	fn()
	d.mu.Unlock()
}

// === Commands ===

// Draw implements gpucore.Device.
func (d *Device) Draw(topology gputypes.PrimitiveTopology, vertexCount, firstVertex uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	pass, err := d.prepareDraw(topology, false)
	if err != nil {
		return err
	}
	pass.Draw(vertexCount, 1, firstVertex, 0)
	d.frame.draws++
	return nil
}

// DrawIndexed implements gpucore.Device.
func (d *Device) DrawIndexed(topology gputypes.PrimitiveTopology, indexCount, firstIndex uint32, baseVertex int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	pass, err := d.prepareDraw(topology, true)
	if err != nil {
		return err
	}
	pass.DrawIndexed(indexCount, 1, firstIndex, baseVertex, 0)
	d.frame.draws++
	return nil
}

// Barrier implements gpucore.Device. It ends the current render pass so
// the next draw transitions attachments it samples.
func (d *Device) Barrier() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endPassLocked()
}

// prepareDraw resolves the slots and returns a render pass with every
// binding set.
func (d *Device) prepareDraw(topology gputypes.PrimitiveTopology, indexed bool) (hal.RenderPassEncoder, error) {
	color := d.textures[d.slots.targets.Color]
	depth := d.textures[d.slots.targets.Depth]
	if color == nil && depth == nil {
		return nil, ErrNoRenderTarget
	}
	vs, okV := d.modules[d.slots.programs.Vertex]
	fs, okF := d.modules[d.slots.programs.Fragment]
	if !okV || !okF {
		return nil, ErrNoProgram
	}

	key := pipelineKey{
		programs:     d.slots.programs,
		vertex:       d.slots.vertex.Layout,
		topology:     topology,
		raster:       d.slots.raster,
		blend:        d.slots.blend,
		writeMask:    d.slots.writeMask,
		depthStencil: d.slots.depthStencil,
	}
	if color != nil {
		key.hasColor, key.color = true, color.desc.Format
	}
	if depth != nil {
		key.hasDepth, key.depth = true, depth.desc.Format
	}
	pipeline, err := d.pipelines.GetOrCreate(d.device, key, d.layouts.pipeline, vs, fs)
	if err != nil {
		return nil, err
	}
	// textureGroup may submit, so buffer reads are recorded after it.
	texGroup, err := d.textureGroup()
	if err != nil {
		return nil, err
	}
	bufGroup, offsets, err := d.bufferGroup()
	if err != nil {
		return nil, err
	}

	var vb, ib *buffer
	if d.slots.vertex.Layout.Mask != 0 {
		if vb = d.buffers[d.slots.vertex.Buffer]; vb == nil {
			return nil, fmt.Errorf("%w: vertex buffer %d", ErrUnknownResource, d.slots.vertex.Buffer)
		}
	}
	if indexed {
		if ib = d.buffers[d.slots.index.Buffer]; ib == nil {
			return nil, fmt.Errorf("%w: index buffer %d", ErrUnknownResource, d.slots.index.Buffer)
		}
	}

	pass, err := d.renderPass(color, depth)
	if err != nil {
		return nil, err
	}
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(gpucore.BindGroupBuffers, bufGroup, offsets)
	pass.SetBindGroup(gpucore.BindGroupTextures, texGroup, nil)
	if vb != nil {
		off := d.slots.vertex.Offset
		pass.SetVertexBuffer(0, vb.raw, off)
		d.frame.read(d.slots.vertex.Buffer, off, vb.size-min(off, vb.size))
	}
	if ib != nil {
		off := d.slots.index.Offset
		pass.SetIndexBuffer(ib.raw, d.slots.index.Format, off)
		d.frame.read(d.slots.index.Buffer, off, ib.size-min(off, ib.size))
	}

	target := color
	if target == nil {
		target = depth
	}
	w, h := target.levelSize(0)
	vp := d.slots.viewport
	pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, 0, 1)
	sc := gpucore.Rect{Right: w, Bottom: h}
	if d.slots.scissor.Enabled {
		sc = d.slots.scissor.Rect.Intersect(sc)
	}
	pass.SetScissorRect(sc.Left, sc.Top, sc.Width(), sc.Height())
	blendConst := d.slots.blendConst
	pass.SetBlendConstant(&blendConst)
	pass.SetStencilReference(d.slots.stencilRef)
	return pass, nil
}

// renderPass returns a pass drawing into color and depth. The open pass is
// reused unless the targets changed or a texture needs a transition.
func (d *Device) renderPass(color, depth *texture) (hal.RenderPassEncoder, error) {
	sampled := d.sampledTextures(d.frame.scratch[:0])
	d.frame.scratch = sampled[:0]
	stale := false
	for _, t := range sampled {
		stale = stale || t.usage != gputypes.TextureUsageTextureBinding
	}
	for _, t := range []*texture{color, depth} {
		stale = stale || (t != nil && t.usage != gputypes.TextureUsageRenderAttachment)
	}
	d.frame.use(sampled...)
	if d.frame.pass != nil && d.frame.targets == d.slots.targets && !stale {
		return d.frame.pass, nil
	}

	d.endPassLocked()
	enc, err := d.encoderLocked()
	if err != nil {
		return nil, err
	}
	d.transition(enc, gputypes.TextureUsageTextureBinding, sampled...)
	d.transition(enc, gputypes.TextureUsageRenderAttachment, color, depth)

	desc := &hal.RenderPassDescriptor{Label: "pica draw"}
	if color != nil {
		view, err := color.view(d.device, 0, 0, gputypes.TextureAspectAll)
		if err != nil {
			return nil, err
		}
		desc.ColorAttachments = []hal.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}}
	}
	if depth != nil {
		view, err := depth.view(d.device, 0, 0, gputypes.TextureAspectAll)
		if err != nil {
			return nil, err
		}
		ds := &hal.RenderPassDepthStencilAttachment{
			View:         view,
			DepthLoadOp:  gputypes.LoadOpLoad,
			DepthStoreOp: gputypes.StoreOpStore,
		}
		if hasStencil(depth.desc.Format) {
			ds.StencilLoadOp = gputypes.LoadOpLoad
			ds.StencilStoreOp = gputypes.StoreOpStore
		}
		desc.DepthStencilAttachment = ds
	}
	d.frame.pass = enc.BeginRenderPass(desc)
	d.frame.targets = d.slots.targets
	d.frame.use(color, depth)
	return d.frame.pass, nil
}
