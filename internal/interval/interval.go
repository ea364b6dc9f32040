// Package interval provides sorted sets of half-open address intervals.
package interval

import "sort"

// Span is a half open interval that includes Start but not End.
type Span struct {
	Start uint32 // the first address in the interval
	End   uint32 // the next address not included in the interval
}

// SpanOf returns the span starting at addr covering size bytes.
// The end saturates at the top of the address space.
func SpanOf(addr, size uint32) Span {
	end := uint64(addr) + uint64(size)
	if end > 1<<32-1 {
		end = 1<<32 - 1
	}
	return Span{Start: addr, End: uint32(end)}
}

// Size returns the number of addresses in the span.
func (s Span) Size() uint32 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Empty reports whether the span covers nothing.
func (s Span) Empty() bool { return s.End <= s.Start }

// Overlaps reports whether s and o share at least one address.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start && o.End <= s.End
}

// Intersect returns the overlap of s and o, which may be empty.
func (s Span) Intersect(o Span) Span {
	out := Span{Start: max(s.Start, o.Start), End: min(s.End, o.End)}
	if out.Empty() {
		return Span{}
	}
	return out
}

// Set is a sorted list of disjoint, non-adjacent spans.
// The zero value is an empty set.
type Set struct {
	spans []Span
}

// Spans returns the spans of the set in ascending order.
// The returned slice must not be modified.
func (s *Set) Spans() []Span { return s.spans }

// Len returns the number of disjoint spans.
func (s *Set) Len() int { return len(s.spans) }

// Empty reports whether the set covers nothing.
func (s *Set) Empty() bool { return len(s.spans) == 0 }

// Clear removes every span.
func (s *Set) Clear() { s.spans = s.spans[:0] }

// Clone returns an independent copy.
func (s *Set) Clone() Set {
	return Set{spans: append([]Span(nil), s.spans...)}
}

// bounds returns the index range [lo, hi) of spans touching span.
// When merge is true adjacent spans are included as well.
func (s *Set) bounds(span Span, merge bool) (int, int) {
	lo := sort.Search(len(s.spans), func(i int) bool {
		if merge {
			return span.Start <= s.spans[i].End
		}
		return span.Start < s.spans[i].End
	})
	hi := sort.Search(len(s.spans), func(i int) bool {
		if merge {
			return span.End < s.spans[i].Start
		}
		return span.End <= s.spans[i].Start
	})
	return lo, hi
}

// Add merges span into the set.
func (s *Set) Add(span Span) {
	if span.Empty() {
		return
	}
	lo, hi := s.bounds(span, true)
	if lo < hi {
		span.Start = min(span.Start, s.spans[lo].Start)
		span.End = max(span.End, s.spans[hi-1].End)
	}
	s.replace(lo, hi, span)
}

// Remove subtracts span from the set.
func (s *Set) Remove(span Span) {
	if span.Empty() {
		return
	}
	lo, hi := s.bounds(span, false)
	if lo >= hi {
		return
	}
	var keep [2]Span
	n := 0
	if first := s.spans[lo]; first.Start < span.Start {
		keep[n] = Span{Start: first.Start, End: span.Start}
		n++
	}
	if last := s.spans[hi-1]; last.End > span.End {
		keep[n] = Span{Start: span.End, End: last.End}
		n++
	}
	s.replace(lo, hi, keep[:n]...)
}

// replace swaps spans[lo:hi] for with.
func (s *Set) replace(lo, hi int, with ...Span) {
	tail := append([]Span(nil), s.spans[hi:]...)
	s.spans = append(append(s.spans[:lo], with...), tail...)
}

// Intersects reports whether any address of span is in the set.
func (s *Set) Intersects(span Span) bool {
	lo, hi := s.bounds(span, false)
	return lo < hi && !span.Empty()
}

// Contains reports whether every address of span is in the set.
func (s *Set) Contains(span Span) bool {
	if span.Empty() {
		return true
	}
	lo, hi := s.bounds(span, false)
	return hi-lo == 1 && s.spans[lo].Contains(span)
}

// Overlapping returns the parts of the set that fall inside span.
func (s *Set) Overlapping(span Span) []Span {
	lo, hi := s.bounds(span, false)
	if lo >= hi || span.Empty() {
		return nil
	}
	out := make([]Span, 0, hi-lo)
	for _, sp := range s.spans[lo:hi] {
		out = append(out, sp.Intersect(span))
	}
	return out
}
