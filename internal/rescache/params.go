package rescache

import (
	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/interval"
	"github.com/gogpu/pica/internal/texcodec"
)

// ScaleMatch selects how the resolution scale of a cached surface is
// compared with a request.
type ScaleMatch uint8

const (
	// ScaleExact only accepts surfaces of the requested scale.
	ScaleExact ScaleMatch = iota
	// ScaleUpscale accepts surfaces of the requested scale or above.
	ScaleUpscale
	// ScaleIgnore accepts any scale.
	ScaleIgnore
)

func (m ScaleMatch) accepts(have, want uint32) bool {
	switch m {
	case ScaleExact:
		return have == want
	case ScaleUpscale:
		return have >= want
	}
	return true
}

// SurfaceParams describe a guest image.
//
// Width, Height and Stride are in pixels. Guest row 0 is stored in host
// row 0. Tiled images are addressed in bands of eight rows.
type SurfaceParams struct {
	Addr   uint32
	End    uint32
	Width  uint32
	Height uint32
	Stride uint32
	Format texcodec.PixelFormat
	Tiled  bool
	Levels uint32
	Scale  uint32
}

// UpdateParams fills in defaults and recomputes End.
func (p *SurfaceParams) UpdateParams() {
	if p.Stride == 0 {
		p.Stride = p.Width
	}
	if p.Levels == 0 {
		p.Levels = 1
	}
	if p.Scale == 0 {
		p.Scale = 1
	}
	p.End = p.Addr
	for l := uint32(0); l < p.Levels; l++ {
		lp := p.Level(l)
		p.End = lp.End
	}
}

// Valid reports whether the params describe a non-empty image in a known format.
func (p *SurfaceParams) Valid() bool {
	return p.Addr != 0 && p.Width != 0 && p.Height != 0 &&
		p.Format.Type() != texcodec.TypeInvalid && p.Stride >= p.Width
}

// Size returns the number of guest bytes covered.
func (p *SurfaceParams) Size() uint32 { return p.End - p.Addr }

// Span returns the guest address range covered.
func (p *SurfaceParams) Span() interval.Span { return interval.Span{Start: p.Addr, End: p.End} }

// ScaledWidth returns the host texture width.
func (p *SurfaceParams) ScaledWidth() uint32 { return p.Width * p.Scale }

// ScaledHeight returns the host texture height.
func (p *SurfaceParams) ScaledHeight() uint32 { return p.Height * p.Scale }

// rowLines is the number of pixel rows in one addressable band.
func (p *SurfaceParams) rowLines() uint32 {
	if p.Tiled {
		return texcodec.TileSize
	}
	return 1
}

// rowBytes is the guest size of one band.
func (p *SurfaceParams) rowBytes() uint32 {
	return p.Format.GuestSize(p.Stride, p.rowLines())
}

// Level returns the params of mip level l as a single level image.
func (p *SurfaceParams) Level(l uint32) SurfaceParams {
	lp := *p
	lp.Levels = 1
	for i := uint32(0); i < l; i++ {
		lp.Addr += lp.Format.GuestSize(lp.Stride, lp.Height)
		lp.Width = max(lp.Width/2, 1)
		lp.Height = max(lp.Height/2, 1)
		lp.Stride = lp.Width
	}
	lines := lp.rowLines()
	bands := max(lp.Height/lines, 1)
	lp.End = lp.Addr + lp.rowBytes()*(bands-1) + lp.Format.GuestSize(lp.Width, lines)
	return lp
}

// bands returns the band range [first, last) touched by span.
func (p *SurfaceParams) bands(span interval.Span) (uint32, uint32) {
	span = span.Intersect(p.Span())
	if span.Empty() {
		return 0, 0
	}
	rb := p.rowBytes()
	n := max(p.Height/p.rowLines(), 1)
	first := (span.Start - p.Addr) / rb
	last := min((span.End-p.Addr+rb-1)/rb, n)
	return first, last
}

// bandSpan returns the guest range of bands [first, last), clipped to End.
func (p *SurfaceParams) bandSpan(first, last uint32) interval.Span {
	rb := p.rowBytes()
	return interval.Span{Start: p.Addr + first*rb, End: min(p.Addr+last*rb, p.End)}
}

// ExactMatch reports whether o describes the same image as p, ignoring scale.
func (p *SurfaceParams) ExactMatch(o *SurfaceParams) bool {
	return p.Addr == o.Addr && p.Width == o.Width && p.Height == o.Height &&
		p.Stride == o.Stride && p.Format == o.Format && p.Tiled == o.Tiled &&
		p.Levels == o.Levels
}

// CanSubRect reports whether sub is a rectangle of p.
func (p *SurfaceParams) CanSubRect(sub *SurfaceParams) bool {
	if p.Levels != 1 || sub.Levels > 1 || sub.Format != p.Format || sub.Tiled != p.Tiled {
		return false
	}
	if !p.Span().Contains(sub.Span()) {
		return false
	}
	unit := p.Format.GuestSize(p.rowLines(), p.rowLines())
	if unit == 0 || (sub.Addr-p.Addr)%unit != 0 {
		return false
	}
	if sub.Stride != p.Stride && sub.Height > p.rowLines() {
		return false
	}
	r := p.SubRect(sub)
	return r.Right <= p.Width && r.Bottom <= p.Height
}

// SubRect returns the unscaled rectangle sub occupies in p.
func (p *SurfaceParams) SubRect(sub *SurfaceParams) gpucore.Rect {
	bits := p.Format.BitsPerPixel()
	if bits == 0 {
		return gpucore.Rect{}
	}
	offset := (sub.Addr - p.Addr) * 8 / bits
	var x0, y0 uint32
	if p.Tiled {
		band := p.Stride * texcodec.TileSize
		x0 = offset % band / texcodec.TileSize
		y0 = offset / band * texcodec.TileSize
	} else {
		x0 = offset % p.Stride
		y0 = offset / p.Stride
	}
	return gpucore.RectWH(x0, y0, sub.Width, sub.Height)
}

// RectSpan returns the guest range holding the unscaled rectangle r,
// widened to whole bands.
func (p *SurfaceParams) RectSpan(r gpucore.Rect) interval.Span {
	lines := p.rowLines()
	first := r.Top / lines
	last := (r.Bottom + lines - 1) / lines
	if r.Empty() || first >= last {
		return interval.Span{}
	}
	return p.bandSpan(first, last)
}
