package native

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/gpucore"
)

//go:embed shaders/blit.wgsl
var blitShaderSource string

//go:embed shaders/blit_depth.wgsl
var blitDepthShaderSource string

// blitParamsSize is the size of the blit uniform block: a vec4 source
// rectangle and the flip flag, padded to 32 bytes.
const blitParamsSize = 32

// blitProgram is one blit shader with its layouts.
type blitProgram struct {
	module     hal.ShaderModule
	group      hal.BindGroupLayout
	layout     hal.PipelineLayout
	pipelines  map[gputypes.TextureFormat]hal.RenderPipeline
	depthWrite bool
}

// blitter draws scaled and flipped texture copies.
type blitter struct {
	color   blitProgram
	depth   blitProgram
	sampler hal.Sampler
}

func (b *blitter) init(dev hal.Device) error {
	if err := b.color.init(dev, "pica blit", blitShaderSource, false); err != nil {
		return err
	}
	if err := b.depth.init(dev, "pica depth blit", blitDepthShaderSource, true); err != nil {
		return err
	}
	var err error
	b.sampler, err = dev.CreateSampler(&hal.SamplerDescriptor{
		Label:        "pica blit sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("native: create blit sampler: %w", err)
	}
	return nil
}

func (p *blitProgram) init(dev hal.Device, label, source string, depth bool) error {
	p.depthWrite = depth
	p.pipelines = make(map[gputypes.TextureFormat]hal.RenderPipeline)
	var err error
	p.module, err = dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return fmt.Errorf("native: create %s shader: %w", label, err)
	}

	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: gputypes.ShaderStageVertex,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}}
	if depth {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    1,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeDepth,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	} else {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			})
	}
	p.group, err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: label, Entries: entries})
	if err != nil {
		return fmt.Errorf("native: create %s layout: %w", label, err)
	}
	p.layout, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []hal.BindGroupLayout{p.group},
	})
	if err != nil {
		return fmt.Errorf("native: create %s pipeline layout: %w", label, err)
	}
	return nil
}

// pipeline returns the blit pipeline writing format.
func (p *blitProgram) pipeline(dev hal.Device, format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if pl, ok := p.pipelines[format]; ok {
		return pl, nil
	}
	desc := &hal.RenderPipelineDescriptor{
		Label:  "pica blit",
		Layout: p.layout,
		Vertex: hal.VertexState{Module: p.module, EntryPoint: "vs_main"},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if p.depthWrite {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            format,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionAlways,
			StencilFront:      keepFace,
			StencilBack:       keepFace,
		}
	} else {
		desc.Fragment.Targets = []gputypes.ColorTargetState{{
			Format:    format,
			WriteMask: gputypes.ColorWriteMaskAll,
		}}
	}
	pl, err := dev.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("native: create blit pipeline: %w", err)
	}
	p.pipelines[format] = pl
	return pl, nil
}

func (p *blitProgram) destroy(dev hal.Device) {
	for f, pl := range p.pipelines {
		dev.DestroyRenderPipeline(pl)
		delete(p.pipelines, f)
	}
	if p.layout != nil {
		dev.DestroyPipelineLayout(p.layout)
	}
	if p.group != nil {
		dev.DestroyBindGroupLayout(p.group)
	}
	if p.module != nil {
		dev.DestroyShaderModule(p.module)
	}
	*p = blitProgram{}
}

func (b *blitter) destroy(dev hal.Device) {
	b.color.destroy(dev)
	b.depth.destroy(dev)
	if b.sampler != nil {
		dev.DestroySampler(b.sampler)
		b.sampler = nil
	}
}

// blitParams encodes the uniform block for a blit of src.
func blitParams(src gpucore.TextureRegion, w, h uint32, flipY bool) []byte {
	out := make([]byte, 0, blitParamsSize)
	for _, v := range [4]float32{
		float32(src.Rect.Left) / float32(w),
		float32(src.Rect.Top) / float32(h),
		float32(src.Rect.Right) / float32(w),
		float32(src.Rect.Bottom) / float32(h),
	} {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	var flip float32
	if flipY {
		flip = 1
	}
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(flip))
	return append(out, make([]byte, blitParamsSize-len(out))...)
}

// draw records a blit of src into dst. The per-blit uniform buffer and
// bind group are released after submission.
func (b *blitter) draw(d *Device, st, dt *texture, src, dst gpucore.TextureRegion, flipY bool) error {
	depth := isDepth(dt.desc.Format)
	prog := &b.color
	aspect := gputypes.TextureAspectAll
	if depth {
		prog = &b.depth
		aspect = gputypes.TextureAspectDepthOnly
	}
	pipeline, err := prog.pipeline(d.device, dt.desc.Format)
	if err != nil {
		return err
	}
	srcView, err := st.view(d.device, src.Level, src.Layer, aspect)
	if err != nil {
		return err
	}
	dstView, err := dt.view(d.device, dst.Level, dst.Layer, gputypes.TextureAspectAll)
	if err != nil {
		return err
	}

	params, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pica blit params",
		Size:  blitParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create blit params: %w", err)
	}
	sw, sh := st.levelSize(src.Level)
	d.queue.WriteBuffer(params, 0, blitParams(src, sw, sh, flipY))

	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.BufferBinding{
			Buffer: uintptr(params.NativeHandle()), Offset: 0, Size: blitParamsSize,
		}},
		{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: uintptr(srcView.NativeHandle())}},
	}
	if !depth {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: 2, Resource: gputypes.SamplerBinding{Sampler: uintptr(b.sampler.NativeHandle())},
		})
	}
	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "pica blit",
		Layout:  prog.group,
		Entries: entries,
	})
	if err != nil {
		d.device.DestroyBuffer(params)
		return fmt.Errorf("native: create blit bind group: %w", err)
	}
	d.frame.garbage = append(d.frame.garbage, func() {
		d.device.DestroyBindGroup(group)
		d.device.DestroyBuffer(params)
	})

	d.endPassLocked()
	enc, err := d.encoderLocked()
	if err != nil {
		return err
	}
	d.transition(enc, gputypes.TextureUsageTextureBinding, st)
	d.transition(enc, gputypes.TextureUsageRenderAttachment, dt)

	desc := &hal.RenderPassDescriptor{Label: "pica blit"}
	if depth {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:         dstView,
			DepthLoadOp:  gputypes.LoadOpLoad,
			DepthStoreOp: gputypes.StoreOpStore,
		}
		if hasStencil(dt.desc.Format) {
			ds.StencilLoadOp = gputypes.LoadOpLoad
			ds.StencilStoreOp = gputypes.StoreOpStore
		}
		desc.DepthStencilAttachment = ds
	} else {
		desc.ColorAttachments = []hal.RenderPassColorAttachment{{
			View:    dstView,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}}
	}
	r := dst.Rect
	pass := enc.BeginRenderPass(desc)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.SetViewport(float32(r.Left), float32(r.Top), float32(r.Width()), float32(r.Height()), 0, 1)
	pass.SetScissorRect(r.Left, r.Top, r.Width(), r.Height())
	pass.Draw(3, 1, 0, 0)
	pass.End()
	d.frame.use(st, dt)
	return nil
}
