package interval

import (
	"reflect"
	"testing"
)

func TestSetAdd(t *testing.T) {
	tests := []struct {
		name string
		add  []Span
		want []Span
	}{
		{"single", []Span{{10, 20}}, []Span{{10, 20}}},
		{"disjoint", []Span{{30, 40}, {10, 20}}, []Span{{10, 20}, {30, 40}}},
		{"adjacent merge", []Span{{10, 20}, {20, 30}}, []Span{{10, 30}}},
		{"overlap merge", []Span{{10, 20}, {15, 25}}, []Span{{10, 25}}},
		{"bridge", []Span{{10, 20}, {30, 40}, {15, 35}}, []Span{{10, 40}}},
		{"empty ignored", []Span{{10, 10}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Set
			for _, sp := range tt.add {
				s.Add(sp)
			}
			if got := s.Spans(); !reflect.DeepEqual(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("Spans() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetRemove(t *testing.T) {
	tests := []struct {
		name   string
		remove Span
		want   []Span
	}{
		{"middle split", Span{14, 16}, []Span{{10, 14}, {16, 20}, {30, 40}}},
		{"head", Span{0, 15}, []Span{{15, 20}, {30, 40}}},
		{"across", Span{15, 35}, []Span{{10, 15}, {35, 40}}},
		{"all", Span{0, 100}, nil},
		{"disjoint", Span{21, 29}, []Span{{10, 20}, {30, 40}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Set
			s.Add(Span{10, 20})
			s.Add(Span{30, 40})
			s.Remove(tt.remove)
			if got := s.Spans(); !reflect.DeepEqual(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("Spans() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetQueries(t *testing.T) {
	var s Set
	s.Add(Span{10, 20})
	s.Add(Span{30, 40})

	if !s.Intersects(Span{19, 31}) {
		t.Error("Intersects({19,31}) = false")
	}
	if s.Intersects(Span{20, 30}) {
		t.Error("Intersects({20,30}) = true")
	}
	if !s.Contains(Span{12, 18}) {
		t.Error("Contains({12,18}) = false")
	}
	if s.Contains(Span{12, 32}) {
		t.Error("Contains({12,32}) = true")
	}
	got := s.Overlapping(Span{15, 35})
	want := []Span{{15, 20}, {30, 35}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Overlapping = %v, want %v", got, want)
	}
}

func TestSpanOfSaturates(t *testing.T) {
	sp := SpanOf(0xffff_fff0, 0x100)
	if sp.End != 0xffff_ffff {
		t.Errorf("End = %#x, want saturation", sp.End)
	}
}
