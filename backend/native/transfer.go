package native

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/gpucore"
)

// copyPitchAlignment is the BytesPerRow alignment of buffer-texture copies.
const copyPitchAlignment = 256

// plane is one aspect of the tightly packed upload layout.
type plane struct {
	aspect gputypes.TextureAspect
	bpp    uint32
}

// planes returns the aspects of format in upload order: a depth plane
// before the stencil plane for combined formats.
func planes(format gputypes.TextureFormat) []plane {
	switch format {
	case gputypes.TextureFormatDepth16Unorm:
		return []plane{{gputypes.TextureAspectDepthOnly, 2}}
	case gputypes.TextureFormatDepth32Float:
		return []plane{{gputypes.TextureAspectDepthOnly, 4}}
	case gputypes.TextureFormatDepth32FloatStencil8:
		return []plane{{gputypes.TextureAspectDepthOnly, 4}, {gputypes.TextureAspectStencilOnly, 1}}
	}
	return []plane{{gputypes.TextureAspectAll, 4}}
}

// aspectFormat returns the view format of one aspect of format.
func aspectFormat(format gputypes.TextureFormat, aspect gputypes.TextureAspect) gputypes.TextureFormat {
	if format == gputypes.TextureFormatDepth32FloatStencil8 && aspect == gputypes.TextureAspectDepthOnly {
		return gputypes.TextureFormatDepth32Float
	}
	return format
}

func alignPitch(n uint32) uint32 {
	return (n + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// lookup returns a texture and checks that r lies inside it.
func (d *Device) lookup(r gpucore.TextureRegion) (*texture, error) {
	t, ok := d.textures[r.Texture]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrUnknownResource, r.Texture)
	}
	if !t.contains(r) {
		return nil, fmt.Errorf("%w: %v level %d layer %d of %q", ErrOutOfBounds, r.Rect, r.Level, r.Layer, t.desc.Label)
	}
	return t, nil
}

// writePlane uploads one aspect of a region through the queue.
func (d *Device) writePlane(t *texture, level, layer uint32, rect gpucore.Rect, aspect gputypes.TextureAspect, data []byte, bpp uint32) {
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.raw,
			MipLevel: level,
			Origin:   hal.Origin3D{X: rect.Left, Y: rect.Top, Z: layer},
			Aspect:   aspect,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  rect.Width() * bpp,
			RowsPerImage: rect.Height(),
		},
		&hal.Extent3D{Width: rect.Width(), Height: rect.Height(), DepthOrArrayLayers: 1},
	)
	t.usage = gputypes.TextureUsageCopyDst
}

// WriteTexture implements gpucore.Device. Recorded commands are submitted
// first so the upload lands after them.
func (d *Device) WriteTexture(dst gpucore.TextureRegion, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.lookup(dst)
	if err != nil {
		return err
	}
	if dst.Rect.Empty() {
		return nil
	}
	return d.writeRegionLocked(t, dst, data)
}

func (d *Device) writeRegionLocked(t *texture, dst gpucore.TextureRegion, data []byte) error {
	pixels := dst.Rect.Width() * dst.Rect.Height()
	var need uint32
	for _, p := range planes(t.desc.Format) {
		need += pixels * p.bpp
	}
	if uint32(len(data)) < need {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortData, len(data), need)
	}
	if err := d.submitLocked(); err != nil {
		return err
	}
	var off uint32
	for _, p := range planes(t.desc.Format) {
		size := pixels * p.bpp
		d.writePlane(t, dst.Level, dst.Layer, dst.Rect, p.aspect, data[off:off+size], p.bpp)
		off += size
	}
	return nil
}

// ReadTexture implements gpucore.Device. It submits recorded commands and
// waits for the GPU.
func (d *Device) ReadTexture(src gpucore.TextureRegion) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.lookup(src)
	if err != nil {
		return nil, err
	}
	if src.Rect.Empty() {
		return nil, nil
	}

	w, h := src.Rect.Width(), src.Rect.Height()
	ps := planes(t.desc.Format)
	var copies []hal.BufferTextureCopy
	var staged uint64
	for _, p := range ps {
		copies = append(copies, hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{Offset: staged, BytesPerRow: alignPitch(w * p.bpp), RowsPerImage: h},
			TextureBase: hal.ImageCopyTexture{
				Texture:  t.raw,
				MipLevel: src.Level,
				Origin:   hal.Origin3D{X: src.Rect.Left, Y: src.Rect.Top, Z: src.Layer},
				Aspect:   p.aspect,
			},
			Size: hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		})
		staged += uint64(alignPitch(w*p.bpp)) * uint64(h)
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pica readback",
		Size:  staged,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	d.endPassLocked()
	enc, err := d.encoderLocked()
	if err != nil {
		return nil, err
	}
	d.transition(enc, gputypes.TextureUsageCopySrc, t)
	enc.CopyTextureToBuffer(t.raw, staging, copies)
	if err := d.submitLocked(); err != nil {
		return nil, err
	}

	readback := make([]byte, staged)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}

	// Strip per-row padding.
	var out []byte
	for i, p := range ps {
		row := w * p.bpp
		pitch := uint64(copies[i].BufferLayout.BytesPerRow)
		base := copies[i].BufferLayout.Offset
		for y := uint64(0); y < uint64(h); y++ {
			off := base + y*pitch
			out = append(out, readback[off:off+uint64(row)]...)
		}
	}
	return out, nil
}

// CopyTexture implements gpucore.Device.
func (d *Device) CopyTexture(src, dst gpucore.TextureRegion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.lookup(src)
	if err != nil {
		return err
	}
	dt, err := d.lookup(dst)
	if err != nil {
		return err
	}
	if st.desc.Format != dt.desc.Format {
		return fmt.Errorf("%w: %v and %v", ErrFormatMismatch, st.desc.Format, dt.desc.Format)
	}
	if src.Rect.Width() != dst.Rect.Width() || src.Rect.Height() != dst.Rect.Height() {
		return fmt.Errorf("native: copy size mismatch %v and %v", src.Rect, dst.Rect)
	}
	if src.Rect.Empty() {
		return nil
	}
	return d.copyLocked(st, dt, src, dst)
}

func (d *Device) copyLocked(st, dt *texture, src, dst gpucore.TextureRegion) error {
	d.endPassLocked()
	enc, err := d.encoderLocked()
	if err != nil {
		return err
	}
	d.transition(enc, gputypes.TextureUsageCopySrc, st)
	d.transition(enc, gputypes.TextureUsageCopyDst, dt)
	enc.CopyTextureToTexture(st.raw, dt.raw, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{
			Texture:  st.raw,
			MipLevel: src.Level,
			Origin:   hal.Origin3D{X: src.Rect.Left, Y: src.Rect.Top, Z: src.Layer},
			Aspect:   gputypes.TextureAspectAll,
		},
		DstBase: hal.ImageCopyTexture{
			Texture:  dt.raw,
			MipLevel: dst.Level,
			Origin:   hal.Origin3D{X: dst.Rect.Left, Y: dst.Rect.Top, Z: dst.Layer},
			Aspect:   gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: src.Rect.Width(), Height: src.Rect.Height(), DepthOrArrayLayers: 1},
	}})
	d.frame.use(st, dt)
	return nil
}

// BlitTexture implements gpucore.Device. Equal sizes without a flip are
// copied; everything else is drawn with linear filtering. Depth blits
// carry depth only.
func (d *Device) BlitTexture(src, dst gpucore.TextureRegion, flipY bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.lookup(src)
	if err != nil {
		return err
	}
	dt, err := d.lookup(dst)
	if err != nil {
		return err
	}
	if st.desc.Format != dt.desc.Format {
		return fmt.Errorf("%w: %v and %v", ErrFormatMismatch, st.desc.Format, dt.desc.Format)
	}
	if src.Rect.Empty() || dst.Rect.Empty() {
		return nil
	}
	if !flipY && src.Rect.Width() == dst.Rect.Width() && src.Rect.Height() == dst.Rect.Height() {
		return d.copyLocked(st, dt, src, dst)
	}
	return d.blit.draw(d, st, dt, src, dst, flipY)
}

// FillTexture implements gpucore.Device. Whole levels are cleared by a
// render pass, partial regions are uploaded.
func (d *Device) FillTexture(dst gpucore.TextureRegion, value gpucore.ClearValue) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.lookup(dst)
	if err != nil {
		return err
	}
	if dst.Rect.Empty() {
		return nil
	}
	w, h := t.levelSize(dst.Level)
	if dst.Rect == (gpucore.Rect{Right: w, Bottom: h}) {
		return d.clearLocked(t, dst.Level, dst.Layer, value)
	}
	return d.writeRegionLocked(t, dst, fillPattern(t.desc.Format, dst.Rect, value))
}

func (d *Device) clearLocked(t *texture, level, layer uint32, value gpucore.ClearValue) error {
	view, err := t.view(d.device, level, layer, gputypes.TextureAspectAll)
	if err != nil {
		return err
	}
	d.endPassLocked()
	enc, err := d.encoderLocked()
	if err != nil {
		return err
	}
	d.transition(enc, gputypes.TextureUsageRenderAttachment, t)
	desc := &hal.RenderPassDescriptor{Label: "pica fill"}
	if isDepth(t.desc.Format) {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: value.Depth,
		}
		if hasStencil(t.desc.Format) {
			ds.StencilLoadOp = gputypes.LoadOpClear
			ds.StencilStoreOp = gputypes.StoreOpStore
			ds.StencilClearValue = uint32(value.Stencil)
		}
		desc.DepthStencilAttachment = ds
	} else {
		c := value.Color
		desc.ColorAttachments = []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
		}}
	}
	enc.BeginRenderPass(desc).End()
	d.frame.use(t)
	return nil
}

// fillPattern encodes value over rect in the upload layout of format.
func fillPattern(format gputypes.TextureFormat, rect gpucore.Rect, value gpucore.ClearValue) []byte {
	n := int(rect.Width() * rect.Height())
	var px []byte
	var stencil bool
	switch format {
	case gputypes.TextureFormatDepth16Unorm:
		px = binary.LittleEndian.AppendUint16(nil, uint16(clamp01(value.Depth)*0xFFFF+0.5))
	case gputypes.TextureFormatDepth32Float:
		px = binary.LittleEndian.AppendUint32(nil, math.Float32bits(value.Depth))
	case gputypes.TextureFormatDepth32FloatStencil8:
		px = binary.LittleEndian.AppendUint32(nil, math.Float32bits(value.Depth))
		stencil = true
	default:
		px = make([]byte, 4)
		for i := range px {
			px[i] = uint8(clamp01(value.Color[i])*255 + 0.5)
		}
	}
	out := make([]byte, 0, n*(len(px)+1))
	for i := 0; i < n; i++ {
		out = append(out, px...)
	}
	if stencil {
		for i := 0; i < n; i++ {
			out = append(out, value.Stencil)
		}
	}
	return out
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
