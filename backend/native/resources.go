package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/gpucore"
)

// texture is a HAL texture with the views the device needs.
type texture struct {
	raw  hal.Texture
	desc gpucore.TextureDescriptor

	// sampled covers every level, as a cube for cube textures.
	sampled hal.TextureView
	// views holds single level and layer 2D views, created on demand.
	views map[viewKey]hal.TextureView
	// usage is the last usage the texture was transitioned to.
	usage gputypes.TextureUsage
}

type viewKey struct {
	level, layer uint32
	aspect       gputypes.TextureAspect
}

func (t *texture) layers() uint32 {
	if t.desc.Cube {
		return 6
	}
	return 1
}

func (t *texture) levelSize(level uint32) (uint32, uint32) {
	return max(t.desc.Width>>level, 1), max(t.desc.Height>>level, 1)
}

func (t *texture) contains(r gpucore.TextureRegion) bool {
	if r.Level >= t.desc.MipLevels || r.Layer >= t.layers() {
		return false
	}
	w, h := t.levelSize(r.Level)
	return r.Rect.Left <= r.Rect.Right && r.Rect.Top <= r.Rect.Bottom &&
		gpucore.RectWH(0, 0, w, h).Contains(r.Rect)
}

// view returns a 2D view of one level and layer.
func (t *texture) view(dev hal.Device, level, layer uint32, aspect gputypes.TextureAspect) (hal.TextureView, error) {
	k := viewKey{level, layer, aspect}
	if v, ok := t.views[k]; ok {
		return v, nil
	}
	v, err := dev.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           t.desc.Label,
		Format:          aspectFormat(t.desc.Format, aspect),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          aspect,
		BaseMipLevel:    level,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create view of %q: %w", t.desc.Label, err)
	}
	if t.views == nil {
		t.views = make(map[viewKey]hal.TextureView)
	}
	t.views[k] = v
	return v, nil
}

func (t *texture) destroy(dev hal.Device) {
	for k, v := range t.views {
		dev.DestroyTextureView(v)
		delete(t.views, k)
	}
	if t.sampled != nil {
		dev.DestroyTextureView(t.sampled)
		t.sampled = nil
	}
	if t.raw != nil {
		dev.DestroyTexture(t.raw)
		t.raw = nil
	}
}

// buffer is a HAL buffer with its size.
type buffer struct {
	raw  hal.Buffer
	size uint64
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: texture dimensions must be positive")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.createTextureLocked(*desc)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = t
	return id, nil
}

func (d *Device) createTextureLocked(desc gpucore.TextureDescriptor) (*texture, error) {
	desc.MipLevels = max(desc.MipLevels, 1)
	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding
	if desc.RenderTarget || isDepth(desc.Format) {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	t := &texture{desc: desc}
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: t.layers(),
		},
		MipLevelCount: desc.MipLevels,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	t.raw = raw

	dim := gputypes.TextureViewDimension2D
	if desc.Cube {
		dim = gputypes.TextureViewDimensionCube
	}
	aspect := gputypes.TextureAspectAll
	if isDepth(desc.Format) {
		aspect = gputypes.TextureAspectDepthOnly
	}
	t.sampled, err = d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          aspectFormat(desc.Format, aspect),
		Dimension:       dim,
		Aspect:          aspect,
		MipLevelCount:   desc.MipLevels,
		ArrayLayerCount: t.layers(),
	})
	if err != nil {
		t.destroy(d.device)
		return nil, fmt.Errorf("native: create view of %q: %w", desc.Label, err)
	}
	return t, nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return
	}
	// Recorded commands may still reference the texture.
	if d.frame.uses(t) {
		if err := d.submitLocked(); err != nil {
			d.logger().Warn("native: submit before destroy", "err", err)
		}
	}
	delete(d.textures, id)
	d.groups.dropTexture(d.device, id)
	t.destroy(d.device)
}

// CreateSampler implements gpucore.Device.
func (d *Device) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil sampler descriptor")
	}
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "pica sampler",
		AddressModeU: desc.WrapU,
		AddressModeV: desc.WrapV,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipFilter,
		LodMinClamp:  desc.LodMin,
		LodMaxClamp:  desc.LodMax,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create sampler: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = s
	return id, nil
}

// DestroySampler implements gpucore.Device.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.samplers[id]
	if !ok {
		return
	}
	if d.frame.active() {
		if err := d.submitLocked(); err != nil {
			d.logger().Warn("native: submit before destroy", "err", err)
		}
	}
	delete(d.samplers, id)
	d.groups.dropSampler(d.device, id)
	d.device.DestroySampler(s)
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer size must be positive")
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{raw: raw, size: desc.Size}
	return id, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	if _, used := d.frame.reads[id]; used {
		if err := d.submitLocked(); err != nil {
			d.logger().Warn("native: submit before destroy", "err", err)
		}
	}
	delete(d.buffers, id)
	d.groups.dropBuffer(d.device, id)
	d.device.DestroyBuffer(b.raw)
}

// WriteBuffer implements gpucore.Device. A write that overlaps bytes read
// by recorded commands submits them first.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	end := offset + uint64(len(data))
	if end > b.size {
		return fmt.Errorf("native: write of %d bytes at %d exceeds buffer size %d", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if r, used := d.frame.reads[id]; used && offset < r.end && r.start < end {
		if err := d.submitLocked(); err != nil {
			return err
		}
	}
	d.queue.WriteBuffer(b.raw, offset, data)
	return nil
}

// CreateShaderModule implements gpucore.Device.
func (d *Device) CreateShaderModule(stage gpucore.ShaderStage, spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if len(spirv) == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: empty SPIR-V for %s", label)
	}
	m, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create shader module %s: %w", label, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.ShaderModuleID(d.newID())
	d.modules[id] = m
	d.logger().Debug("native: shader module", "id", id, "stage", stage, "label", label)
	return id, nil
}

// DestroyShaderModule implements gpucore.Device. Pipelines built from the
// module are released with it.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.modules[id]
	if !ok {
		return
	}
	if d.frame.active() {
		if err := d.submitLocked(); err != nil {
			d.logger().Warn("native: submit before destroy", "err", err)
		}
	}
	delete(d.modules, id)
	d.pipelines.dropModule(d.device, id)
	d.device.DestroyShaderModule(m)
}

func isDepth(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth16Unorm, gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth32FloatStencil8, gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8:
		return true
	}
	return false
}

func hasStencil(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth32FloatStencil8 || f == gputypes.TextureFormatDepth24PlusStencil8
}
