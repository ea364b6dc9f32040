package pica

import (
	"github.com/gogpu/pica/internal/rescache"
	"github.com/gogpu/pica/internal/shader"
)

// Stats are cumulative rasterizer counters.
type Stats struct {
	// Draws counts host draw calls, including each software chunk.
	Draws uint64
	// AcceleratedDraws counts batches drawn with the guest vertex program.
	AcceleratedDraws uint64
	// SoftwareDraws counts batches of CPU-processed triangles.
	SoftwareDraws uint64
	// Fallbacks counts batches refused by the accelerated path.
	Fallbacks uint64
	// SkippedDraws counts shadow draws without a target.
	SkippedDraws uint64
	Barriers     uint64

	VertexBytes  uint64
	IndexBytes   uint64
	UniformBytes uint64
	LUTBytes     uint64
	RingWraps    uint64

	Cache   rescache.Stats
	Shaders shader.Stats
}

// Stats returns a snapshot of the counters.
func (r *Rasterizer) Stats() Stats {
	s := r.stats
	s.VertexBytes = r.vertexRing.Uploaded()
	s.IndexBytes = r.indexRing.Uploaded()
	s.UniformBytes = r.uniformRing.Uploaded()
	s.LUTBytes = r.lutLF.Uploaded() + r.lutProcTex.Uploaded()
	s.RingWraps = r.vertexRing.Wraps() + r.indexRing.Wraps() + r.uniformRing.Wraps() +
		r.lutLF.Wraps() + r.lutProcTex.Wraps()
	s.Cache = r.cache.Stats()
	if m := r.manager(); m != nil {
		s.Shaders = m.Stats()
	}
	return s
}
