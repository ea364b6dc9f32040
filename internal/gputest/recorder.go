// Package gputest provides an in-memory gpucore.Device that records calls.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
)

// ErrUnknownResource is returned for IDs the recorder never issued.
var ErrUnknownResource = errors.New("gputest: unknown resource")

// DrawCall is one recorded draw.
type DrawCall struct {
	Topology     gputypes.PrimitiveTopology
	Count        uint32
	First        uint32
	BaseVertex   int32
	Indexed      bool
	Targets      gpucore.RenderTargets
	Programs     gpucore.Programs
	DepthStencil gpucore.DepthStencilState
}

// Fill is one recorded FillTexture call.
type Fill struct {
	Region gpucore.TextureRegion
	Value  gpucore.ClearValue
}

// TextureBind is one recorded BindTexture call.
type TextureBind struct {
	Unit    gpucore.TextureUnit
	Binding gpucore.TextureBinding
}

// ImageBind is one recorded BindImage call.
type ImageBind struct {
	Slot    gpucore.ImageSlot
	Texture gpucore.TextureID
}

// Counts tallies calls by category.
type Counts struct {
	StateChanges   int
	TextureBinds   int
	ImageBinds     int
	BufferBinds    int
	Draws          int
	Barriers       int
	TextureWrites  int
	TextureReads   int
	Copies         int
	Blits          int
	Fills          int
	BufferWrites   int
	ShaderModules  int
	ShadersAlive   int
	TexturesAlive  int
	TexturesMade   int
	SamplersMade   int
	BuffersCreated int
}

type texture struct {
	desc   gpucore.TextureDescriptor
	bpp    uint32
	layers [][]byte // level*layerCount + layer
}

// Recorder is a gpucore.Device that keeps resources in memory and records
// every call. It is safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	Caps gpucore.Capabilities

	nextID   uint64
	textures map[gpucore.TextureID]*texture
	buffers  map[gpucore.BufferID][]byte
	samplers map[gpucore.SamplerID]gpucore.SamplerDescriptor
	shaders  map[gpucore.ShaderModuleID]gpucore.ShaderStage

	counts Counts

	Draws        []DrawCall
	TextureBinds []TextureBind
	ImageBinds   []ImageBind
	Fills        []Fill

	targets      gpucore.RenderTargets
	programs     gpucore.Programs
	depthStencil gpucore.DepthStencilState
}

// NewRecorder returns an empty recorder with default capabilities.
func NewRecorder() *Recorder {
	return &Recorder{
		Caps: gpucore.Capabilities{
			UniformOffsetAlignment: 256,
			MaxTextureSize:         8192,
		},
		textures: make(map[gpucore.TextureID]*texture),
		buffers:  make(map[gpucore.BufferID][]byte),
		samplers: make(map[gpucore.SamplerID]gpucore.SamplerDescriptor),
		shaders:  make(map[gpucore.ShaderModuleID]gpucore.ShaderStage),
	}
}

// Counts returns a snapshot of the call counters.
func (r *Recorder) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counts
	c.TexturesAlive = len(r.textures)
	c.ShadersAlive = len(r.shaders)
	return c
}

// Reset clears the counters and recorded calls but keeps resources.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = Counts{}
	r.Draws = nil
	r.TextureBinds = nil
	r.ImageBinds = nil
	r.Fills = nil
}

// Buffer returns a copy of the contents of a buffer.
func (r *Recorder) Buffer(id gpucore.BufferID) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buffers[id]...)
}

// TextureDesc returns the descriptor a texture was created with.
func (r *Recorder) TextureDesc(id gpucore.TextureID) (gpucore.TextureDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.textures[id]
	if !ok {
		return gpucore.TextureDescriptor{}, false
	}
	return t.desc, true
}

func (r *Recorder) id() uint64 {
	r.nextID++
	return r.nextID
}

// Capabilities implements gpucore.Device.
func (r *Recorder) Capabilities() gpucore.Capabilities { return r.Caps }

// CreateTexture implements gpucore.Device.
func (r *Recorder) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("gputest: invalid texture descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	levels := max(desc.MipLevels, 1)
	layerCount := uint32(1)
	if desc.Cube {
		layerCount = 6
	}
	t := &texture{desc: *desc, bpp: BytesPerPixel(desc.Format)}
	t.desc.MipLevels = levels
	for l := uint32(0); l < levels; l++ {
		w, h := max(desc.Width>>l, 1), max(desc.Height>>l, 1)
		for range layerCount {
			t.layers = append(t.layers, make([]byte, w*h*t.bpp))
		}
	}
	id := gpucore.TextureID(r.id())
	r.textures[id] = t
	r.counts.TexturesMade++
	return id, nil
}

// DestroyTexture implements gpucore.Device.
func (r *Recorder) DestroyTexture(id gpucore.TextureID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.textures, id)
}

func (t *texture) plane(level, layer uint32) ([]byte, uint32, uint32, bool) {
	layerCount := uint32(1)
	if t.desc.Cube {
		layerCount = 6
	}
	idx := level*layerCount + layer
	if level >= t.desc.MipLevels || layer >= layerCount {
		return nil, 0, 0, false
	}
	return t.layers[idx], max(t.desc.Width>>level, 1), max(t.desc.Height>>level, 1), true
}

// WriteTexture implements gpucore.Device.
func (r *Recorder) WriteTexture(dst gpucore.TextureRegion, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.textures[dst.Texture]
	if !ok {
		return ErrUnknownResource
	}
	plane, w, h, ok := t.plane(dst.Level, dst.Layer)
	if !ok || dst.Rect.Right > w || dst.Rect.Bottom > h {
		return fmt.Errorf("gputest: write out of bounds")
	}
	rw := dst.Rect.Width() * t.bpp
	if uint32(len(data)) < rw*dst.Rect.Height() {
		return fmt.Errorf("gputest: short texture data")
	}
	for y := uint32(0); y < dst.Rect.Height(); y++ {
		off := ((dst.Rect.Top+y)*w + dst.Rect.Left) * t.bpp
		copy(plane[off:off+rw], data[y*rw:])
	}
	r.counts.TextureWrites++
	return nil
}

// ReadTexture implements gpucore.Device.
func (r *Recorder) ReadTexture(src gpucore.TextureRegion) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.textures[src.Texture]
	if !ok {
		return nil, ErrUnknownResource
	}
	plane, w, h, ok := t.plane(src.Level, src.Layer)
	if !ok || src.Rect.Right > w || src.Rect.Bottom > h {
		return nil, fmt.Errorf("gputest: read out of bounds")
	}
	rw := src.Rect.Width() * t.bpp
	out := make([]byte, rw*src.Rect.Height())
	for y := uint32(0); y < src.Rect.Height(); y++ {
		off := ((src.Rect.Top+y)*w + src.Rect.Left) * t.bpp
		copy(out[y*rw:], plane[off:off+rw])
	}
	r.counts.TextureReads++
	return out, nil
}

// CopyTexture implements gpucore.Device.
func (r *Recorder) CopyTexture(src, dst gpucore.TextureRegion) error {
	if src.Rect.Width() != dst.Rect.Width() || src.Rect.Height() != dst.Rect.Height() {
		return fmt.Errorf("gputest: copy size mismatch")
	}
	return r.blit(src, dst, false, true)
}

// BlitTexture implements gpucore.Device with nearest sampling.
func (r *Recorder) BlitTexture(src, dst gpucore.TextureRegion, flipY bool) error {
	return r.blit(src, dst, flipY, false)
}

func (r *Recorder) blit(src, dst gpucore.TextureRegion, flipY, isCopy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok1 := r.textures[src.Texture]
	dt, ok2 := r.textures[dst.Texture]
	if !ok1 || !ok2 {
		return ErrUnknownResource
	}
	sp, sw, _, okS := st.plane(src.Level, src.Layer)
	dp, dw, _, okD := dt.plane(dst.Level, dst.Layer)
	if !okS || !okD || st.bpp != dt.bpp {
		return fmt.Errorf("gputest: incompatible blit")
	}
	dW, dH := dst.Rect.Width(), dst.Rect.Height()
	sW, sH := src.Rect.Width(), src.Rect.Height()
	if dW == 0 || dH == 0 || sW == 0 || sH == 0 {
		return nil
	}
	for y := uint32(0); y < dH; y++ {
		sy := y * sH / dH
		if flipY {
			sy = sH - 1 - sy
		}
		for x := uint32(0); x < dW; x++ {
			sx := x * sW / dW
			so := ((src.Rect.Top+sy)*sw + src.Rect.Left + sx) * st.bpp
			do := ((dst.Rect.Top+y)*dw + dst.Rect.Left + x) * dt.bpp
			copy(dp[do:do+dt.bpp], sp[so:so+st.bpp])
		}
	}
	if isCopy {
		r.counts.Copies++
	} else {
		r.counts.Blits++
	}
	return nil
}

// FillTexture implements gpucore.Device.
func (r *Recorder) FillTexture(dst gpucore.TextureRegion, value gpucore.ClearValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.textures[dst.Texture]
	if !ok {
		return ErrUnknownResource
	}
	plane, w, _, ok := t.plane(dst.Level, dst.Layer)
	if !ok {
		return fmt.Errorf("gputest: fill out of bounds")
	}
	px := make([]byte, t.bpp)
	if t.bpp == 4 && !isDepth(t.desc.Format) {
		for i := range px {
			px[i] = uint8(value.Color[i]*255 + 0.5)
		}
	}
	for y := dst.Rect.Top; y < dst.Rect.Bottom; y++ {
		for x := dst.Rect.Left; x < dst.Rect.Right; x++ {
			off := (y*w + x) * t.bpp
			copy(plane[off:off+t.bpp], px)
		}
	}
	r.Fills = append(r.Fills, Fill{Region: dst, Value: value})
	r.counts.Fills++
	return nil
}

// CreateSampler implements gpucore.Device.
func (r *Recorder) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := gpucore.SamplerID(r.id())
	r.samplers[id] = *desc
	r.counts.SamplersMade++
	return id, nil
}

// DestroySampler implements gpucore.Device.
func (r *Recorder) DestroySampler(id gpucore.SamplerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.samplers, id)
}

// CreateBuffer implements gpucore.Device.
func (r *Recorder) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := gpucore.BufferID(r.id())
	r.buffers[id] = make([]byte, desc.Size)
	r.counts.BuffersCreated++
	return id, nil
}

// DestroyBuffer implements gpucore.Device.
func (r *Recorder) DestroyBuffer(id gpucore.BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, id)
}

// WriteBuffer implements gpucore.Device.
func (r *Recorder) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[id]
	if !ok {
		return ErrUnknownResource
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("gputest: buffer write out of bounds")
	}
	copy(buf[offset:], data)
	r.counts.BufferWrites++
	return nil
}

// CreateShaderModule implements gpucore.Device.
func (r *Recorder) CreateShaderModule(stage gpucore.ShaderStage, _ []uint32, _ string) (gpucore.ShaderModuleID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := gpucore.ShaderModuleID(r.id())
	r.shaders[id] = stage
	r.counts.ShaderModules++
	return id, nil
}

// DestroyShaderModule implements gpucore.Device.
func (r *Recorder) DestroyShaderModule(id gpucore.ShaderModuleID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shaders, id)
}

func (r *Recorder) stateChange() {
	r.mu.Lock()
	r.counts.StateChanges++
	r.mu.Unlock()
}

// SetBlendState implements gpucore.Device.
func (r *Recorder) SetBlendState(gpucore.BlendState) { r.stateChange() }

// SetBlendConstant implements gpucore.Device.
func (r *Recorder) SetBlendConstant(gputypes.Color) { r.stateChange() }

// SetColorWriteMask implements gpucore.Device.
func (r *Recorder) SetColorWriteMask(gputypes.ColorWriteMask) { r.stateChange() }

// SetDepthStencilState implements gpucore.Device.
func (r *Recorder) SetDepthStencilState(s gpucore.DepthStencilState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.depthStencil = s
	r.counts.StateChanges++
}

// SetStencilReference implements gpucore.Device.
func (r *Recorder) SetStencilReference(uint32) { r.stateChange() }

// SetRasterState implements gpucore.Device.
func (r *Recorder) SetRasterState(gpucore.RasterState) { r.stateChange() }

// SetViewport implements gpucore.Device.
func (r *Recorder) SetViewport(gpucore.Viewport) { r.stateChange() }

// SetScissor implements gpucore.Device.
func (r *Recorder) SetScissor(gpucore.Scissor) { r.stateChange() }

// SetRenderTargets implements gpucore.Device.
func (r *Recorder) SetRenderTargets(t gpucore.RenderTargets) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = t
	r.counts.StateChanges++
}

// BindTexture implements gpucore.Device.
func (r *Recorder) BindTexture(unit gpucore.TextureUnit, b gpucore.TextureBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TextureBinds = append(r.TextureBinds, TextureBind{Unit: unit, Binding: b})
	r.counts.TextureBinds++
}

// BindImage implements gpucore.Device.
func (r *Recorder) BindImage(slot gpucore.ImageSlot, tex gpucore.TextureID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ImageBinds = append(r.ImageBinds, ImageBind{Slot: slot, Texture: tex})
	r.counts.ImageBinds++
}

// BindBuffer implements gpucore.Device.
func (r *Recorder) BindBuffer(gpucore.BufferSlot, gpucore.BufferBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.BufferBinds++
}

// SetVertexBuffer implements gpucore.Device.
func (r *Recorder) SetVertexBuffer(gpucore.VertexBufferBinding) { r.stateChange() }

// SetIndexBuffer implements gpucore.Device.
func (r *Recorder) SetIndexBuffer(gpucore.IndexBufferBinding) { r.stateChange() }

// UsePrograms implements gpucore.Device.
func (r *Recorder) UsePrograms(p gpucore.Programs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs = p
	r.counts.StateChanges++
}

// Draw implements gpucore.Device.
func (r *Recorder) Draw(topology gputypes.PrimitiveTopology, count, first uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Draws = append(r.Draws, DrawCall{
		Topology: topology, Count: count, First: first,
		Targets: r.targets, Programs: r.programs, DepthStencil: r.depthStencil,
	})
	r.counts.Draws++
	return nil
}

// DrawIndexed implements gpucore.Device.
func (r *Recorder) DrawIndexed(topology gputypes.PrimitiveTopology, count, first uint32, baseVertex int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Draws = append(r.Draws, DrawCall{
		Topology: topology, Count: count, First: first, BaseVertex: baseVertex, Indexed: true,
		Targets: r.targets, Programs: r.programs, DepthStencil: r.depthStencil,
	})
	r.counts.Draws++
	return nil
}

// Barrier implements gpucore.Device.
func (r *Recorder) Barrier() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.Barriers++
}

// Destroy implements gpucore.Device.
func (r *Recorder) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.textures)
	clear(r.buffers)
	clear(r.samplers)
	clear(r.shaders)
}

// BytesPerPixel returns the packed size used by WriteTexture for format.
func BytesPerPixel(format gputypes.TextureFormat) uint32 {
	switch format {
	case gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatDepth32FloatStencil8:
		return 5
	default:
		return 4
	}
}

func isDepth(format gputypes.TextureFormat) bool {
	switch format {
	case gputypes.TextureFormatDepth16Unorm, gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth32FloatStencil8, gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8:
		return true
	}
	return false
}

var _ gpucore.Device = (*Recorder)(nil)
