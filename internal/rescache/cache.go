package rescache

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/custom"
	"github.com/gogpu/pica/internal/interval"
	"github.com/gogpu/pica/internal/texcodec"
	"github.com/gogpu/pica/memory"
)

// Errors reported by surface transfers.
var (
	// ErrUnmapped is returned when guest memory backing a surface is not mapped.
	ErrUnmapped = errors.New("rescache: guest memory not mapped")

	// ErrInvalidParams is returned for surfaces that cannot be created.
	ErrInvalidParams = errors.New("rescache: invalid surface params")
)

// Config holds the cache settings.
type Config struct {
	// Scale is the resolution factor applied to render targets.
	Scale uint32
	// Pack supplies replacement textures. Nil disables replacement.
	Pack *custom.Pack
}

// Stats are cumulative cache counters.
type Stats struct {
	Surfaces      int
	Created       uint64
	Uploads       uint64
	UploadBytes   uint64
	Flushes       uint64
	FlushBytes    uint64
	Replacements  uint64
	Unregistered  uint64
	Accelerations uint64
}

// Cache owns every host texture that mirrors guest memory.
//
// The draw path and the memory flush/invalidate path may run on different
// goroutines; every exported method serializes on one mutex.
type Cache struct {
	mu  sync.Mutex
	dev gpucore.Device
	mem memory.Memory
	cfg Config

	surfaces []*Surface
	garbage  []gpucore.TextureID
	cubes    map[CubeConfig]*cube
	samplers map[gpucore.SamplerDescriptor]gpucore.SamplerID

	stats Stats
}

// New returns an empty cache.
func New(dev gpucore.Device, mem memory.Memory, cfg Config) *Cache {
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return &Cache{
		dev:      dev,
		mem:      mem,
		cfg:      cfg,
		cubes:    make(map[CubeConfig]*cube),
		samplers: make(map[gpucore.SamplerDescriptor]gpucore.SamplerID),
	}
}

// Scale returns the render target resolution factor.
func (c *Cache) Scale() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Scale
}

// SetScale changes the resolution factor. Existing surfaces are flushed
// and dropped.
func (c *Cache) SetScale(scale uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	scale = max(scale, 1)
	if scale == c.cfg.Scale {
		return
	}
	c.clearAll(true)
	c.cfg.Scale = scale
}

// SetPack installs a replacement texture pack.
func (c *Cache) SetPack(p *custom.Pack) {
	c.mu.Lock()
	c.cfg.Pack = p
	c.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Surfaces = len(c.surfaces)
	return s
}

// Surfaces returns the registered surfaces in creation order.
func (c *Cache) Surfaces() []*Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.surfaces)
}

func (c *Cache) register(s *Surface) {
	s.registered = true
	c.surfaces = append(c.surfaces, s)
}

// unregister drops s. Its textures are destroyed by collect, after any
// draw that still references them.
func (c *Cache) unregister(s *Surface) {
	if !s.registered {
		return
	}
	s.registered = false
	c.surfaces = slices.DeleteFunc(c.surfaces, func(o *Surface) bool { return o == s })
	c.garbage = append(c.garbage, s.tex)
	if s.copyTex != gpucore.InvalidID {
		c.garbage = append(c.garbage, s.copyTex)
	}
	c.stats.Unregistered++
	slogger().Debug("rescache: surface unregistered", "addr", fmt.Sprintf("%#08x", s.Addr), "format", s.Format)
}

// collect destroys the textures of unregistered surfaces.
func (c *Cache) collect() {
	for _, t := range c.garbage {
		c.dev.DestroyTexture(t)
	}
	c.garbage = c.garbage[:0]
}

// overlapping returns the registered surfaces intersecting span.
func (c *Cache) overlapping(span interval.Span) []*Surface {
	var out []*Surface
	for _, s := range c.surfaces {
		if s.Span().Overlaps(span) {
			out = append(out, s)
		}
	}
	return out
}

func (c *Cache) findExact(p *SurfaceParams, match ScaleMatch) *Surface {
	var best *Surface
	for _, s := range c.surfaces {
		if !s.ExactMatch(p) || !match.accepts(s.Scale, p.Scale) {
			continue
		}
		if best == nil || s.Scale > best.Scale {
			best = s
		}
	}
	return best
}

func (c *Cache) findSubRect(p *SurfaceParams, match ScaleMatch) *Surface {
	var best *Surface
	for _, s := range c.surfaces {
		if !s.CanSubRect(p) || !match.accepts(s.Scale, p.Scale) {
			continue
		}
		if best == nil || s.Scale > best.Scale {
			best = s
		}
	}
	return best
}

// create allocates a surface for p. Surfaces of other shapes that overlap
// the new one are flushed and dropped first, so a guest range is mirrored
// by at most one surface layout.
func (c *Cache) create(p SurfaceParams) (*Surface, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidParams, p)
	}
	for _, o := range c.overlapping(p.Span()) {
		c.flushSurface(o, p.Span())
		c.unregister(o)
	}
	rt := p.Format.Type() != texcodec.TypeTexture
	tex, err := c.dev.CreateTexture(&gpucore.TextureDescriptor{
		Label:        fmt.Sprintf("surface %#08x %s", p.Addr, p.Format),
		Width:        p.ScaledWidth(),
		Height:       p.ScaledHeight(),
		MipLevels:    p.Levels,
		Format:       p.Format.HostFormat(),
		RenderTarget: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("rescache: create %s %dx%d: %w", p.Format, p.Width, p.Height, err)
	}
	s := newSurface(p, tex)
	c.register(s)
	c.stats.Created++
	slogger().Debug("rescache: surface created",
		"addr", fmt.Sprintf("%#08x", p.Addr), "size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"format", p.Format, "scale", p.Scale, "levels", p.Levels)
	return s, nil
}

// GetSurface returns a surface holding exactly params, creating it when
// needed. With loadIfCreate the whole surface is validated from memory.
func (c *Cache) GetSurface(params SurfaceParams, match ScaleMatch, loadIfCreate bool) *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getSurface(params, match, loadIfCreate)
}

func (c *Cache) getSurface(params SurfaceParams, match ScaleMatch, loadIfCreate bool) *Surface {
	params.UpdateParams()
	if !params.Valid() {
		return nil
	}
	s := c.findExact(&params, match)
	if s == nil {
		if match != ScaleExact {
			// Inherit the scale of an upscaled surface this one lives in.
			if o := c.findSubRect(&params, ScaleIgnore); o != nil {
				params.Scale = max(params.Scale, o.Scale)
			}
		}
		var err error
		if s, err = c.create(params); err != nil {
			slogger().Warn("rescache: surface allocation failed", "err", err)
			return nil
		}
	}
	if loadIfCreate {
		c.validate(s, s.Span())
	}
	return s
}

// GetSurfaceSubRect returns a surface containing params and the scaled
// rectangle params occupies in it.
func (c *Cache) GetSurfaceSubRect(params SurfaceParams, match ScaleMatch, loadIfCreate bool) (*Surface, gpucore.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getSurfaceSubRect(params, match, loadIfCreate)
}

func (c *Cache) getSurfaceSubRect(params SurfaceParams, match ScaleMatch, loadIfCreate bool) (*Surface, gpucore.Rect) {
	params.UpdateParams()
	if !params.Valid() {
		return nil, gpucore.Rect{}
	}
	if s := c.findSubRect(&params, match); s != nil {
		if loadIfCreate {
			c.validate(s, params.Span())
		}
		return s, s.SubRect(&params).Scale(s.Scale)
	}
	s := c.getSurface(params, match, loadIfCreate)
	if s == nil {
		return nil, gpucore.Rect{}
	}
	return s, gpucore.RectWH(0, 0, s.Width, s.Height).Scale(s.Scale)
}

// GetSurfaceForDisplay looks up the image scanned out to a screen.
func (c *Cache) GetSurfaceForDisplay(params SurfaceParams) (*Surface, gpucore.Rect) {
	return c.GetSurfaceSubRect(params, ScaleIgnore, true)
}

// FlushRegion writes host-newer data in addr..addr+size back to memory.
// When only is non-nil other surfaces are left alone.
func (c *Cache) FlushRegion(addr, size uint32, only *Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushRegion(interval.SpanOf(addr, size), only)
}

func (c *Cache) flushRegion(span interval.Span, only *Surface) {
	if span.Empty() {
		return
	}
	for _, s := range c.overlapping(span) {
		if only != nil && s != only {
			continue
		}
		c.flushSurface(s, span)
	}
}

// FlushAll writes every host-newer byte back to memory.
func (c *Cache) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.surfaces {
		c.flushSurface(s, s.Span())
	}
}

// InvalidateRegion records that addr..addr+size changed. Owner, when not
// nil, now holds the newest copy; every other surface must reload the
// range. Surfaces left with no valid byte are dropped.
func (c *Cache) InvalidateRegion(addr, size uint32, owner *Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateRegion(interval.SpanOf(addr, size), owner)
}

func (c *Cache) invalidateRegion(span interval.Span, owner *Surface) {
	if span.Empty() {
		return
	}
	if owner != nil && owner.registered {
		own := span.Intersect(owner.Span())
		owner.invalid.Remove(own)
		owner.dirty.Add(own)
		owner.generation++
	}
	for _, s := range c.overlapping(span) {
		if s == owner {
			continue
		}
		s.Invalidate(span.Start, span.Size())
		if s.IsFullyInvalid() {
			c.unregister(s)
		}
	}
}

// ClearAll drops every surface, flushing host-newer data first when flush is set.
func (c *Cache) ClearAll(flush bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearAll(flush)
}

func (c *Cache) clearAll(flush bool) {
	for _, s := range slices.Clone(c.surfaces) {
		if flush {
			c.flushSurface(s, s.Span())
		}
		c.unregister(s)
	}
	for k, cb := range c.cubes {
		c.dev.DestroyTexture(cb.tex)
		delete(c.cubes, k)
	}
	c.collect()
}

// Destroy releases every host object owned by the cache without flushing.
func (c *Cache) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearAll(false)
	for k, id := range c.samplers {
		c.dev.DestroySampler(id)
		delete(c.samplers, k)
	}
}
