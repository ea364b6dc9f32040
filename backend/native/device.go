package native

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/gpucore"
)

// Device implements gpucore.Device on a gogpu/wgpu HAL device.
//
// Draws are recorded into a command encoder that stays open until a
// readback, a queue upload or Flush submits it. Consecutive draws into the
// same render targets share one render pass; every pass loads the previous
// attachment contents.
//
// Thread Safety: Device is safe for concurrent use. All calls are
// serialized by a mutex.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
	limits gputypes.Limits
	caps   gpucore.Capabilities
	log    atomic.Pointer[slog.Logger]

	// Start ID generation at 1 (0 is invalid).
	nextID uint64

	textures map[gpucore.TextureID]*texture
	samplers map[gpucore.SamplerID]hal.Sampler
	buffers  map[gpucore.BufferID]*buffer
	modules  map[gpucore.ShaderModuleID]hal.ShaderModule

	layouts   layouts
	pipelines *pipelineCache
	groups    groupCache
	blit      blitter
	null      nullResources

	slots slots
	frame frame

	// release tears down what Open created.
	release func()
}

// slots holds the immediate-mode binding state consumed by the next draw.
type slots struct {
	blend        gpucore.BlendState
	blendConst   gputypes.Color
	writeMask    gputypes.ColorWriteMask
	depthStencil gpucore.DepthStencilState
	stencilRef   uint32
	raster       gpucore.RasterState
	viewport     gpucore.Viewport
	scissor      gpucore.Scissor
	targets      gpucore.RenderTargets
	textures     [gpucore.NumTextureSlots]gpucore.TextureBinding
	images       [gpucore.NumImageSlots]gpucore.TextureID
	buffers      [gpucore.NumBufferSlots]gpucore.BufferBinding
	vertex       gpucore.VertexBufferBinding
	index        gpucore.IndexBufferBinding
	programs     gpucore.Programs
}

// New wraps an opened HAL device and queue. If limits is nil, default
// limits are used.
func New(device hal.Device, queue hal.Queue, limits *gputypes.Limits) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	lim := gputypes.DefaultLimits()
	if limits != nil {
		lim = *limits
	}
	d := &Device{
		device:   device,
		queue:    queue,
		limits:   lim,
		nextID:   1,
		textures: make(map[gpucore.TextureID]*texture),
		samplers: make(map[gpucore.SamplerID]hal.Sampler),
		buffers:  make(map[gpucore.BufferID]*buffer),
		modules:  make(map[gpucore.ShaderModuleID]hal.ShaderModule),
	}
	d.log.Store(slog.New(nopHandler{}))
	d.caps = gpucore.Capabilities{
		// WebGPU min and max blending ignore the blend factors.
		BlendMinMaxFactor:      false,
		FramebufferFetch:       false,
		UniformOffsetAlignment: uint64(max(lim.MinUniformBufferOffsetAlignment, lim.MinStorageBufferOffsetAlignment, 16)),
		MaxTextureSize:         lim.MaxTextureDimension2D,
	}
	d.pipelines = newPipelineCache()
	d.groups = newGroupCache()

	if err := d.layouts.init(device); err != nil {
		d.layouts.destroy(device)
		return nil, err
	}
	if err := d.null.init(d); err != nil {
		d.Destroy()
		return nil, err
	}
	if err := d.blit.init(device); err != nil {
		d.Destroy()
		return nil, err
	}
	d.logger().Info("native: device ready",
		"uniformAlign", d.caps.UniformOffsetAlignment, "maxTexture", d.caps.MaxTextureSize)
	return d, nil
}

// halProvider is implemented by providers that share their HAL objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewFromProvider uses the GPU device of a host application, e.g. a gogpu
// window. The provider must implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHAL, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHAL, hp.HalQueue())
	}
	return New(device, queue, nil)
}

// SetLogger implements the rasterizer's logger propagation. Nil restores
// silent logging.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.log.Store(l)
}

func (d *Device) logger() *slog.Logger { return d.log.Load() }

// Capabilities implements gpucore.Device.
func (d *Device) Capabilities() gpucore.Capabilities { return d.caps }

// PipelineStats returns the render pipeline cache hits and misses.
func (d *Device) PipelineStats() (hits, misses uint64) { return d.pipelines.Stats() }

func (d *Device) newID() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

// Flush submits recorded commands and waits for the GPU.
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitLocked()
}

// Destroy implements gpucore.Device. It waits for pending work, releases
// every resource and, for devices created by Open, the HAL device itself.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.submitLocked(); err != nil {
		d.logger().Warn("native: final submit", "err", err)
	}
	d.groups.destroyAll(d.device)
	d.pipelines.destroyAll(d.device)
	d.blit.destroy(d.device)
	for id, t := range d.textures {
		t.destroy(d.device)
		delete(d.textures, id)
	}
	for id, s := range d.samplers {
		d.device.DestroySampler(s)
		delete(d.samplers, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
	for id, m := range d.modules {
		d.device.DestroyShaderModule(m)
		delete(d.modules, id)
	}
	d.null.destroy(d.device)
	d.layouts.destroy(d.device)
	if d.release != nil {
		d.release()
		d.release = nil
	}
}

var _ gpucore.Device = (*Device)(nil)
