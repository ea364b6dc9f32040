package rescache

import (
	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/interval"
)

// Surface is a guest image resident in a host texture.
//
// Guest bytes in the invalid set are newer in memory than in the texture.
// Bytes in the dirty set are newer in the texture than in memory.
type Surface struct {
	SurfaceParams

	tex     gpucore.TextureID
	copyTex gpucore.TextureID

	invalid interval.Set
	dirty   interval.Set

	generation uint64
	custom     bool
	texture    bool
	registered bool
}

func newSurface(p SurfaceParams, tex gpucore.TextureID) *Surface {
	s := &Surface{SurfaceParams: p, tex: tex}
	s.invalid.Add(p.Span())
	return s
}

// Handle returns the host texture.
func (s *Surface) Handle() gpucore.TextureID { return s.tex }

// Generation changes every time the texture contents change.
func (s *Surface) Generation() uint64 { return s.generation }

// Invalidate marks addr..addr+size as newer in guest memory.
func (s *Surface) Invalidate(addr, size uint32) {
	span := interval.SpanOf(addr, size).Intersect(s.Span())
	if span.Empty() {
		return
	}
	s.invalid.Add(span)
	s.dirty.Remove(span)
}

// IsCustom reports whether the texture holds a replacement image.
func (s *Surface) IsCustom() bool { return s.custom }

// IsFullyInvalid reports whether no byte of the texture is current.
func (s *Surface) IsFullyInvalid() bool { return s.invalid.Contains(s.Span()) }

// IsRegionValid reports whether span holds current data in the texture.
func (s *Surface) IsRegionValid(span interval.Span) bool {
	return !s.invalid.Intersects(span.Intersect(s.Span()))
}

// Dirty returns the ranges whose newest data lives in the texture.
func (s *Surface) Dirty() []interval.Span { return s.dirty.Spans() }

// Registered reports whether the surface is still owned by a cache.
func (s *Surface) Registered() bool { return s.registered }
