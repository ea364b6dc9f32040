package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/gpucore"
)

const (
	// nullBufferSize covers the largest uniform block.
	nullBufferSize = 4096

	// maxTextureGroups bounds the texture bind group cache.
	maxTextureGroups = 1024
)

// dynamicSlots are the buffer slots bound with dynamic offsets.
const dynamicSlots = int(gpucore.BufferVSPicaUniforms) + 1

// layouts holds the bind group and pipeline layouts shared by every
// generated program.
type layouts struct {
	buffers  hal.BindGroupLayout
	textures hal.BindGroupLayout
	pipeline hal.PipelineLayout
}

func (l *layouts) init(dev hal.Device) error {
	stages := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment

	var bufEntries []gputypes.BindGroupLayoutEntry
	for s := gpucore.BufferSlot(0); s < gpucore.NumBufferSlots; s++ {
		layout := &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, HasDynamicOffset: true}
		if s.IsStorage() {
			layout = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
		}
		bufEntries = append(bufEntries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(s),
			Visibility: stages,
			Buffer:     layout,
		})
	}
	var err error
	l.buffers, err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "pica buffers",
		Entries: bufEntries,
	})
	if err != nil {
		return fmt.Errorf("native: create buffer layout: %w", err)
	}

	var texEntries []gputypes.BindGroupLayoutEntry
	for u := gpucore.TextureUnit(0); u < gpucore.NumTextureSlots; u++ {
		dim := gputypes.TextureViewDimension2D
		if u == gpucore.TextureUnitCube {
			dim = gputypes.TextureViewDimensionCube
		}
		texEntries = append(texEntries,
			gputypes.BindGroupLayoutEntry{
				Binding:    gpucore.TextureBindingIndex(u),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: dim,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    gpucore.SamplerBindingIndex(u),
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			})
	}
	for s := gpucore.ImageSlot(0); s < gpucore.NumImageSlots; s++ {
		texEntries = append(texEntries, gputypes.BindGroupLayoutEntry{
			Binding:    gpucore.ImageBindingIndex(s),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	l.textures, err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "pica textures",
		Entries: texEntries,
	})
	if err != nil {
		return fmt.Errorf("native: create texture layout: %w", err)
	}

	l.pipeline, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "pica pipeline layout",
		BindGroupLayouts: []hal.BindGroupLayout{l.buffers, l.textures},
	})
	if err != nil {
		return fmt.Errorf("native: create pipeline layout: %w", err)
	}
	return nil
}

func (l *layouts) destroy(dev hal.Device) {
	if l.pipeline != nil {
		dev.DestroyPipelineLayout(l.pipeline)
	}
	if l.textures != nil {
		dev.DestroyBindGroupLayout(l.textures)
	}
	if l.buffers != nil {
		dev.DestroyBindGroupLayout(l.buffers)
	}
	*l = layouts{}
}

// nullResources back empty binding slots.
type nullResources struct {
	texture *texture
	cube    *texture
	sampler hal.Sampler
	buffer  *buffer
}

func (n *nullResources) init(d *Device) error {
	var err error
	n.texture, err = d.createTextureLocked(gpucore.TextureDescriptor{
		Label: "null texture", Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		return err
	}
	n.cube, err = d.createTextureLocked(gpucore.TextureDescriptor{
		Label: "null cube", Width: 1, Height: 1, Cube: true, Format: gputypes.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		return err
	}
	zero := make([]byte, 4)
	for layer := uint32(0); layer < 6; layer++ {
		if layer == 0 {
			d.writePlane(n.texture, 0, 0, gpucore.Rect{Right: 1, Bottom: 1}, gputypes.TextureAspectAll, zero, 4)
		}
		d.writePlane(n.cube, 0, layer, gpucore.Rect{Right: 1, Bottom: 1}, gputypes.TextureAspectAll, zero, 4)
	}

	n.sampler, err = d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "null sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("native: create null sampler: %w", err)
	}

	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "null buffer",
		Size:  nullBufferSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create null buffer: %w", err)
	}
	n.buffer = &buffer{raw: raw, size: nullBufferSize}
	d.queue.WriteBuffer(raw, 0, make([]byte, nullBufferSize))
	return nil
}

func (n *nullResources) destroy(dev hal.Device) {
	if n.texture != nil {
		n.texture.destroy(dev)
	}
	if n.cube != nil {
		n.cube.destroy(dev)
	}
	if n.sampler != nil {
		dev.DestroySampler(n.sampler)
	}
	if n.buffer != nil {
		dev.DestroyBuffer(n.buffer.raw)
	}
	*n = nullResources{}
}

// bufferGroupKey identifies a buffer bind group. Offsets of the dynamic
// slots are not part of the key.
type bufferGroupKey struct {
	buffers [gpucore.NumBufferSlots]gpucore.BufferID
	offsets [gpucore.NumBufferSlots]uint64
	sizes   [gpucore.NumBufferSlots]uint64
}

type textureGroupKey struct {
	textures [gpucore.NumTextureSlots]gpucore.TextureBinding
	images   [gpucore.NumImageSlots]gpucore.TextureID
}

// groupCache reuses bind groups across draws.
type groupCache struct {
	buffers  map[bufferGroupKey]hal.BindGroup
	textures map[textureGroupKey]hal.BindGroup
}

func newGroupCache() groupCache {
	return groupCache{
		buffers:  make(map[bufferGroupKey]hal.BindGroup),
		textures: make(map[textureGroupKey]hal.BindGroup),
	}
}

func (c *groupCache) dropBuffer(dev hal.Device, id gpucore.BufferID) {
	for k, g := range c.buffers {
		for _, b := range k.buffers {
			if b == id {
				dev.DestroyBindGroup(g)
				delete(c.buffers, k)
				break
			}
		}
	}
}

func (c *groupCache) dropTexture(dev hal.Device, id gpucore.TextureID) {
	for k, g := range c.textures {
		if k.references(id, gpucore.InvalidID) {
			dev.DestroyBindGroup(g)
			delete(c.textures, k)
		}
	}
}

func (c *groupCache) dropSampler(dev hal.Device, id gpucore.SamplerID) {
	for k, g := range c.textures {
		if k.references(gpucore.InvalidID, id) {
			dev.DestroyBindGroup(g)
			delete(c.textures, k)
		}
	}
}

func (k *textureGroupKey) references(tex gpucore.TextureID, smp gpucore.SamplerID) bool {
	for _, b := range k.textures {
		if (tex != gpucore.InvalidID && b.Texture == tex) || (smp != gpucore.InvalidID && b.Sampler == smp) {
			return true
		}
	}
	if tex == gpucore.InvalidID {
		return false
	}
	for _, img := range k.images {
		if img == tex {
			return true
		}
	}
	return false
}

func (c *groupCache) destroyAll(dev hal.Device) {
	for k, g := range c.buffers {
		dev.DestroyBindGroup(g)
		delete(c.buffers, k)
	}
	c.clearTextures(dev)
}

func (c *groupCache) clearTextures(dev hal.Device) {
	for k, g := range c.textures {
		dev.DestroyBindGroup(g)
		delete(c.textures, k)
	}
}

// bufferGroup returns the bind group of the buffer slots and the dynamic
// offsets of the uniform slots.
func (d *Device) bufferGroup() (hal.BindGroup, []uint32, error) {
	var key bufferGroupKey
	var dyn [dynamicSlots]uint32
	bufs := [gpucore.NumBufferSlots]*buffer{}
	for i, bb := range d.slots.buffers {
		b, ok := d.buffers[bb.Buffer]
		if !ok {
			b = d.null.buffer
			bb = gpucore.BufferBinding{Size: nullBufferSize}
		} else {
			key.buffers[i] = bb.Buffer
		}
		size := bb.Size
		if size == 0 || bb.Offset+size > b.size {
			size = b.size - min(bb.Offset, b.size)
		}
		key.sizes[i] = size
		if i < dynamicSlots {
			dyn[i] = uint32(bb.Offset)
		} else {
			key.offsets[i] = bb.Offset
		}
		bufs[i] = b
		d.frame.read(bb.Buffer, bb.Offset, size)
	}

	if g, ok := d.groups.buffers[key]; ok {
		return g, dyn[:], nil
	}
	entries := make([]gputypes.BindGroupEntry, gpucore.NumBufferSlots)
	for i, b := range bufs {
		entries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i),
			Resource: gputypes.BufferBinding{
				Buffer: uintptr(b.raw.NativeHandle()),
				Offset: key.offsets[i],
				Size:   key.sizes[i],
			},
		}
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "pica buffers",
		Layout:  d.layouts.buffers,
		Entries: entries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("native: create buffer bind group: %w", err)
	}
	d.groups.buffers[key] = g
	return g, dyn[:], nil
}

// textureGroup returns the bind group of the texture units and image slots.
func (d *Device) textureGroup() (hal.BindGroup, error) {
	key := textureGroupKey{textures: d.slots.textures, images: d.slots.images}
	if g, ok := d.groups.textures[key]; ok {
		return g, nil
	}
	if len(d.groups.textures) >= maxTextureGroups {
		if err := d.submitLocked(); err != nil {
			return nil, err
		}
		d.groups.clearTextures(d.device)
	}

	var entries []gputypes.BindGroupEntry
	for u, tb := range key.textures {
		unit := gpucore.TextureUnit(u)
		view := d.null.texture.sampled
		if unit == gpucore.TextureUnitCube {
			view = d.null.cube.sampled
		}
		if t, ok := d.textures[tb.Texture]; ok && t.desc.Cube == (unit == gpucore.TextureUnitCube) {
			view = t.sampled
		}
		smp := d.null.sampler
		if s, ok := d.samplers[tb.Sampler]; ok {
			smp = s
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  gpucore.TextureBindingIndex(unit),
				Resource: gputypes.TextureViewBinding{TextureView: uintptr(view.NativeHandle())},
			},
			gputypes.BindGroupEntry{
				Binding:  gpucore.SamplerBindingIndex(unit),
				Resource: gputypes.SamplerBinding{Sampler: uintptr(smp.NativeHandle())},
			})
	}
	for s, id := range key.images {
		view := d.null.texture.sampled
		if t, ok := d.textures[id]; ok && !t.desc.Cube {
			v, err := t.view(d.device, 0, 0, gputypes.TextureAspectAll)
			if err != nil {
				return nil, err
			}
			view = v
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  gpucore.ImageBindingIndex(gpucore.ImageSlot(s)),
			Resource: gputypes.TextureViewBinding{TextureView: uintptr(view.NativeHandle())},
		})
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "pica textures",
		Layout:  d.layouts.textures,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture bind group: %w", err)
	}
	d.groups.textures[key] = g
	return g, nil
}

// sampledTextures returns the textures read by the current bindings.
func (d *Device) sampledTextures(out []*texture) []*texture {
	for _, tb := range d.slots.textures {
		if t, ok := d.textures[tb.Texture]; ok {
			out = append(out, t)
		}
	}
	for _, id := range d.slots.images {
		if t, ok := d.textures[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
