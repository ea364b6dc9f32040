package regs

import (
	"math"
	"testing"
)

func TestLightingLUTEntry(t *testing.T) {
	tests := []struct {
		name      string
		value     uint32
		diff      int32
		wantValue float32
		wantDiff  float32
	}{
		{"zero", 0, 0, 0, 0},
		{"full", 4095, 0, 1, 0},
		{"half positive delta", 2048, 100, 2048.0 / 4095, 100.0 / 4095},
		{"negative delta", 4000, -5, 4000.0 / 4095, -5.0 / 4095},
		{"most negative delta", 10, -2048, 10.0 / 4095, -2048.0 / 4095},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := MakeLightingLUTEntry(tt.value, tt.diff)
			if got := e.ToFloat(); !approx(got, tt.wantValue) {
				t.Errorf("ToFloat() = %v, want %v", got, tt.wantValue)
			}
			if got := e.DiffToFloat(); !approx(got, tt.wantDiff) {
				t.Errorf("DiffToFloat() = %v, want %v", got, tt.wantDiff)
			}
		})
	}
}

func TestFogLUTEntry(t *testing.T) {
	e := MakeFogLUTEntry(2047, -12)
	if got := e.ToFloat(); !approx(got, 1) {
		t.Errorf("ToFloat() = %v, want 1", got)
	}
	if got := e.DiffToFloat(); !approx(got, -12.0/2047) {
		t.Errorf("DiffToFloat() = %v, want %v", got, -12.0/2047)
	}
}

func TestProcTexColorDiff(t *testing.T) {
	c := ProcTexColor(0x80_7f_ff_01)
	got := c.DiffToVec4()
	want := [4]float32{1.0 / 255, -1.0 / 255, 127.0 / 255, -128.0 / 255}
	for i := range want {
		if !approx(got[i], want[i]) {
			t.Errorf("channel %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDirtyMarkAllLUTs(t *testing.T) {
	var d Dirty
	d.MarkAllLUTs()
	if d.LightingLUT != 0xffffff {
		t.Errorf("LightingLUT = %#x, want 0xffffff", d.LightingLUT)
	}
	if !d.FogLUT || !d.ProcTexNoise || !d.ProcTexDiffLUT {
		t.Error("expected every table category to be dirty")
	}
	if d.VSUniforms {
		t.Error("MarkAllLUTs must not touch uniform dirtiness")
	}
}

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	if s.Regs.Texturing.Enabled(0) {
		t.Error("texture unit 0 enabled by default")
	}
	if !s.Regs.Texturing.TevStages[1].IsPassThrough() {
		t.Error("stage 1 should pass the previous result through")
	}
	if s.Regs.Texturing.TevStages[0].IsPassThrough() {
		t.Error("stage 0 should read the primary color")
	}
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}
