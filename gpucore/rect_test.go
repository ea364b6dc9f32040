package gpucore

import "testing"

func TestRectIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{"overlap", RectWH(0, 0, 10, 10), RectWH(5, 5, 10, 10), Rect{5, 5, 10, 10}},
		{"contained", RectWH(0, 0, 10, 10), RectWH(2, 3, 4, 4), Rect{2, 3, 6, 7}},
		{"disjoint", RectWH(0, 0, 4, 4), RectWH(8, 8, 4, 4), Rect{}},
		{"touching", RectWH(0, 0, 4, 4), RectWH(4, 0, 4, 4), Rect{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersect(tt.b); got != tt.want {
				t.Errorf("Intersect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRectScale(t *testing.T) {
	r := RectWH(1, 2, 3, 4).Scale(2)
	if r.Width() != 6 || r.Height() != 8 || r.Left != 2 || r.Top != 4 {
		t.Errorf("Scale(2) = %+v", r)
	}
	if want := (Rect{Left: 2, Top: 4, Right: 8, Bottom: 12}); r != want {
		t.Errorf("Scale(2) = %+v, want %+v", r, want)
	}
}

func TestRectContains(t *testing.T) {
	outer := RectWH(0, 0, 10, 10)
	tests := []struct {
		name string
		r    Rect
		want bool
	}{
		{"equal", outer, true},
		{"inner", RectWH(2, 3, 4, 4), true},
		{"scaled past bottom", RectWH(1, 2, 3, 4).Scale(2), false},
		{"past right", RectWH(8, 0, 4, 4), false},
		{"empty at edge", RectWH(10, 10, 0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outer.Contains(tt.r); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}
