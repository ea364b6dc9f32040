package gpucore

// Rect is a half-open pixel rectangle with a top-left origin.
type Rect struct {
	Left, Top     uint32
	Right, Bottom uint32
}

// RectWH returns the rectangle at (x, y) of size w x h.
func RectWH(x, y, w, h uint32) Rect {
	return Rect{Left: x, Top: y, Right: x + w, Bottom: y + h}
}

// Width returns the horizontal extent.
func (r Rect) Width() uint32 {
	if r.Right <= r.Left {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the vertical extent.
func (r Rect) Height() uint32 {
	if r.Bottom <= r.Top {
		return 0
	}
	return r.Bottom - r.Top
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width() == 0 || r.Height() == 0
}

// Scale multiplies every edge by s.
func (r Rect) Scale(s uint32) Rect {
	return Rect{Left: r.Left * s, Top: r.Top * s, Right: r.Right * s, Bottom: r.Bottom * s}
}

// Intersect returns the overlap of r and o.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.Left >= r.Left && o.Top >= r.Top && o.Right <= r.Right && o.Bottom <= r.Bottom
}
