package native

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/gpucore"
)

// ErrPipelineCacheNilShader is returned when a pipeline key names a module
// the cache was not given.
var ErrPipelineCacheNilShader = errors.New("native: shader module is nil")

// pipelineKey is every slot that is baked into a render pipeline.
// It is comparable and used directly as the cache key.
type pipelineKey struct {
	programs     gpucore.Programs
	vertex       gpucore.VertexLayout
	topology     gputypes.PrimitiveTopology
	raster       gpucore.RasterState
	blend        gpucore.BlendState
	writeMask    gputypes.ColorWriteMask
	depthStencil gpucore.DepthStencilState
	color        gputypes.TextureFormat
	depth        gputypes.TextureFormat
	hasColor     bool
	hasDepth     bool
}

// descriptor builds the HAL pipeline descriptor of k.
func (k *pipelineKey) descriptor(layout hal.PipelineLayout, vs, fs hal.ShaderModule) *hal.RenderPipelineDescriptor {
	var buffers []gputypes.VertexBufferLayout
	if k.vertex.Mask != 0 {
		var attrs []gputypes.VertexAttribute
		for i := 0; i < gpucore.MaxVertexAttributes; i++ {
			if k.vertex.Mask&(1<<i) == 0 {
				continue
			}
			attrs = append(attrs, gputypes.VertexAttribute{
				Format:         k.vertex.Formats[i],
				Offset:         uint64(k.vertex.Offsets[i]),
				ShaderLocation: uint32(i),
			})
		}
		buffers = []gputypes.VertexBufferLayout{{
			ArrayStride: uint64(k.vertex.Stride),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  attrs,
		}}
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  "pica pipeline",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: "main",
			Buffers:    buffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  k.topology,
			FrontFace: k.raster.FrontFace,
			CullMode:  k.raster.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}

	frag := &hal.FragmentState{Module: fs, EntryPoint: "main"}
	if k.hasColor {
		target := gputypes.ColorTargetState{Format: k.color, WriteMask: k.writeMask}
		if k.blend.Enabled {
			blend := k.blend.State
			target.Blend = &blend
		}
		frag.Targets = []gputypes.ColorTargetState{target}
	}
	desc.Fragment = frag

	if k.hasDepth {
		ds := k.depthStencil
		state := &hal.DepthStencilState{
			Format:       k.depth,
			DepthCompare: gputypes.CompareFunctionAlways,
			StencilFront: keepFace,
			StencilBack:  keepFace,
		}
		if ds.DepthTestEnable {
			state.DepthCompare = ds.DepthCompare
			state.DepthWriteEnabled = ds.DepthWriteEnable
		}
		if ds.StencilTestEnable && hasStencil(k.depth) {
			face := hal.StencilFaceState{
				Compare:     ds.StencilCompare,
				FailOp:      stencilOperation(ds.StencilFailOp),
				DepthFailOp: stencilOperation(ds.StencilDepthFail),
				PassOp:      stencilOperation(ds.StencilPassOp),
			}
			state.StencilFront = face
			state.StencilBack = face
			state.StencilReadMask = uint32(ds.StencilReadMask)
			state.StencilWriteMask = uint32(ds.StencilWriteMask)
		}
		desc.DepthStencil = state
	}
	return desc
}

var keepFace = hal.StencilFaceState{
	Compare:     gputypes.CompareFunctionAlways,
	FailOp:      hal.StencilOperationKeep,
	DepthFailOp: hal.StencilOperationKeep,
	PassOp:      hal.StencilOperationKeep,
}

func stencilOperation(op gputypes.StencilOperation) hal.StencilOperation {
	switch op {
	case gputypes.StencilOperationZero:
		return hal.StencilOperationZero
	case gputypes.StencilOperationReplace:
		return hal.StencilOperationReplace
	case gputypes.StencilOperationInvert:
		return hal.StencilOperationInvert
	case gputypes.StencilOperationIncrementClamp:
		return hal.StencilOperationIncrementClamp
	case gputypes.StencilOperationDecrementClamp:
		return hal.StencilOperationDecrementClamp
	case gputypes.StencilOperationIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case gputypes.StencilOperationDecrementWrap:
		return hal.StencilOperationDecrementWrap
	}
	return hal.StencilOperationKeep
}

// pipelineCache caches compiled render pipelines.
//
// Pipeline creation is expensive because it involves shader compilation and
// validation. The cache stores pipelines by the slots they bake in so that
// a state change back to an earlier combination reuses the pipeline.
//
// Thread Safety:
// pipelineCache is safe for concurrent use. It uses RWMutex with
// double-check locking for efficient reads and safe writes.
type pipelineCache struct {
	mu        sync.RWMutex
	pipelines map[pipelineKey]hal.RenderPipeline

	// hits and misses are accessed atomically.
	hits   uint64
	misses uint64
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{pipelines: make(map[pipelineKey]hal.RenderPipeline)}
}

// GetOrCreate returns the cached pipeline of key or creates it.
//
//  1. Fast path: RLock, check cache, return if found
//  2. Slow path: Lock, double-check, create if needed
func (c *pipelineCache) GetOrCreate(dev hal.Device, key pipelineKey, layout hal.PipelineLayout, vs, fs hal.ShaderModule) (hal.RenderPipeline, error) {
	c.mu.RLock()
	if p, ok := c.pipelines[key]; ok {
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}
	if vs == nil || fs == nil {
		return nil, ErrPipelineCacheNilShader
	}
	p, err := dev.CreateRenderPipeline(key.descriptor(layout, vs, fs))
	if err != nil {
		return nil, fmt.Errorf("native: create render pipeline: %w", err)
	}
	c.pipelines[key] = p
	atomic.AddUint64(&c.misses, 1)
	return p, nil
}

// Stats returns cache statistics.
// These values are read atomically and may not be perfectly synchronized.
func (c *pipelineCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// Len returns the number of cached pipelines.
func (c *pipelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// dropModule destroys the pipelines built from a shader module.
func (c *pipelineCache) dropModule(dev hal.Device, id gpucore.ShaderModuleID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pipelines {
		if k.programs.Vertex == id || k.programs.Fragment == id {
			dev.DestroyRenderPipeline(p)
			delete(c.pipelines, k)
		}
	}
}

func (c *pipelineCache) destroyAll(dev hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pipelines {
		dev.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
}
