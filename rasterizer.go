package pica

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/rescache"
	"github.com/gogpu/pica/internal/shader"
	"github.com/gogpu/pica/internal/state"
	"github.com/gogpu/pica/internal/stream"
	"github.com/gogpu/pica/memory"
	"github.com/gogpu/pica/regs"
)

// Streaming buffer capacities in bytes.
const (
	VertexBufferSize      = 16 << 20
	IndexBufferSize       = 2 << 20
	UniformBufferSize     = 8 << 20
	LightingLUTBufferSize = 2 << 20
	ProcTexLUTBufferSize  = 2 << 20
)

// ErrNilDependency is returned by New when a collaborator is missing.
var ErrNilDependency = errors.New("pica: nil dependency")

// ProgressFunc receives shader disk cache progress.
type ProgressFunc = shader.ProgressFunc

// LoadStage is a step of the shader disk cache warm-up.
type LoadStage = shader.LoadStage

// Disk cache load stages.
const (
	StagePrepare    = shader.StagePrepare
	StageDecompress = shader.StageDecompress
	StageBuild      = shader.StageBuild
	StageComplete   = shader.StageComplete
)

// Rasterizer turns guest draw commands into host draws.
//
// Draw, AccelerateDrawBatch, AddTriangle, DrawTriangles and the Accelerate*
// transfers must run on one goroutine, the one that owns the device. The
// memory hooks (FlushRegion, InvalidateRegion and friends) may be called
// from another goroutine; they serialize on the resource cache.
type Rasterizer struct {
	mem  memory.Memory
	dev  gpucore.Device
	st   *regs.State
	opts options
	caps gpucore.Capabilities

	mirror  *state.Mirror
	cache   *rescache.Cache
	shaders *shader.Registry

	vertexRing  *stream.Buffer
	indexRing   *stream.Buffer
	uniformRing *stream.Buffer
	lutLF       *stream.Buffer
	lutProcTex  *stream.Buffer

	uniformAlign uint64
	vsu          shader.VSUniforms
	fsu          shader.FSUniforms
	vsDirty      bool
	fsDirty      bool
	// picaValid is false when the bound guest uniform block may have been
	// overwritten by a ring wrap.
	picaValid bool

	luts lutCache

	batch  []HardwareVertex
	shadow shadowDepth

	stats Stats
}

// New creates a rasterizer drawing st on dev. mem backs every guest
// address the registers reference.
func New(mem memory.Memory, dev gpucore.Device, st *regs.State, opts ...Option) (*Rasterizer, error) {
	if mem == nil || dev == nil || st == nil {
		return nil, ErrNilDependency
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	caps := dev.Capabilities()
	if o.noMinMaxBlend {
		caps.BlendMinMaxFactor = false
	}
	if o.noFramebufferFetch {
		caps.FramebufferFetch = false
	}

	r := &Rasterizer{
		mem:          mem,
		dev:          dev,
		st:           st,
		opts:         o,
		caps:         caps,
		mirror:       state.NewMirror(caps),
		cache:        rescache.New(dev, mem, rescache.Config{Scale: o.scale, Pack: o.pack}),
		shaders:      shader.NewRegistry(dev, shader.Options{CacheDir: o.shaderCacheDir, Compiler: o.compiler}),
		uniformAlign: max(caps.UniformOffsetAlignment, 16),
		vsDirty:      true,
		fsDirty:      true,
	}
	r.mirror.FlipY = true
	r.vsu.FlipY = true
	r.shaders.Reset(o.programID)

	rings := []struct {
		dst   **stream.Buffer
		label string
		size  uint64
		usage gputypes.BufferUsage
	}{
		{&r.vertexRing, "vertex", VertexBufferSize, gputypes.BufferUsageVertex},
		{&r.indexRing, "index", IndexBufferSize, gputypes.BufferUsageIndex},
		{&r.uniformRing, "uniform", UniformBufferSize, gputypes.BufferUsageUniform},
		{&r.lutLF, "lut lf", LightingLUTBufferSize, gputypes.BufferUsageStorage},
		{&r.lutProcTex, "lut proctex", ProcTexLUTBufferSize, gputypes.BufferUsageStorage},
	}
	for _, ring := range rings {
		b, err := stream.New(dev, ring.label, ring.size, ring.usage)
		if err != nil {
			r.Destroy()
			return nil, fmt.Errorf("pica: %w", err)
		}
		*ring.dst = b
	}

	bufs := &r.mirror.Cur.Buffers
	bufs[gpucore.BufferLUTLightingFog] = gpucore.BufferBinding{Buffer: r.lutLF.ID(), Size: r.lutLF.Size()}
	bufs[gpucore.BufferLUTProcTexRG] = gpucore.BufferBinding{Buffer: r.lutProcTex.ID(), Size: r.lutProcTex.Size()}
	bufs[gpucore.BufferLUTProcTexRGBA] = gpucore.BufferBinding{Buffer: r.lutProcTex.ID(), Size: r.lutProcTex.Size()}

	trackLogger(dev)
	Logger().Debug("pica: rasterizer created", "scale", o.scale, "program", fmt.Sprintf("%016X", o.programID))
	return r, nil
}

// Destroy releases every host resource owned by the rasterizer. The device
// itself is left to the caller.
func (r *Rasterizer) Destroy() {
	untrackLogger(r.dev)
	r.shaders.Destroy()
	r.releaseShadowTarget()
	r.cache.Destroy()
	for _, b := range []*stream.Buffer{r.vertexRing, r.indexRing, r.uniformRing, r.lutLF, r.lutProcTex} {
		if b != nil {
			b.Destroy()
		}
	}
}

// Scale returns the render surface resolution factor.
func (r *Rasterizer) Scale() uint32 { return r.cache.Scale() }

// SetScale changes the resolution factor. Cached surfaces are written back
// and dropped.
func (r *Rasterizer) SetScale(scale uint32) {
	if scale < 1 {
		return
	}
	r.releaseShadowTarget()
	r.cache.SetScale(scale)
}

// LoadDefaultDiskResources resets the shader registry to the configured
// program and loads its disk cache. Setting cancel aborts the load.
func (r *Rasterizer) LoadDefaultDiskResources(cancel *atomic.Bool, cb ProgressFunc) error {
	return r.shaders.LoadDefault(r.opts.programID, cancel, cb)
}

// SwitchDiskResources makes titleID the active shader namespace.
func (r *Rasterizer) SwitchDiskResources(titleID uint64) error {
	return r.shaders.SwitchDiskResources(titleID, r.opts.progress)
}

// ResidentPrograms lists the program ids with a resident shader manager.
func (r *Rasterizer) ResidentPrograms() []uint64 { return r.shaders.ProgramIDs() }

// FlushAll writes every host-newer surface byte back to guest memory.
func (r *Rasterizer) FlushAll() { r.cache.FlushAll() }

// FlushRegion writes host-newer bytes in addr..addr+size back to guest memory.
func (r *Rasterizer) FlushRegion(addr, size uint32) { r.cache.FlushRegion(addr, size, nil) }

// InvalidateRegion records a guest write to addr..addr+size.
func (r *Rasterizer) InvalidateRegion(addr, size uint32) { r.cache.InvalidateRegion(addr, size, nil) }

// FlushAndInvalidateRegion flushes the range and then invalidates it.
func (r *Rasterizer) FlushAndInvalidateRegion(addr, size uint32) {
	r.cache.FlushRegion(addr, size, nil)
	r.cache.InvalidateRegion(addr, size, nil)
}

// ClearAll drops every cached surface, writing host data back first when
// flush is set.
func (r *Rasterizer) ClearAll(flush bool) {
	r.releaseShadowTarget()
	r.cache.ClearAll(flush)
}

// AccelerateFill performs a memory fill on the host when the target is cached.
func (r *Rasterizer) AccelerateFill(cfg regs.MemoryFillConfig) bool {
	return r.cache.AccelerateFill(cfg)
}

// AccelerateDisplayTransfer performs a display transfer on the host.
func (r *Rasterizer) AccelerateDisplayTransfer(cfg regs.DisplayTransferConfig) bool {
	return r.cache.AccelerateDisplayTransfer(cfg)
}

// AccelerateTextureCopy performs a texture copy on the host.
func (r *Rasterizer) AccelerateTextureCopy(cfg regs.DisplayTransferConfig) bool {
	return r.cache.AccelerateTextureCopy(cfg)
}

// manager returns the active shader manager.
func (r *Rasterizer) manager() *shader.Manager { return r.shaders.Current() }
