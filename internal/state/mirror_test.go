package state

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/gputest"
	"github.com/gogpu/pica/regs"
)

func TestApplyIdempotent(t *testing.T) {
	rec := gputest.NewRecorder()
	m := NewMirror(rec.Capabilities())
	st := regs.NewState()
	st.Regs.Framebuffer.OutputMerger.AlphaBlendEnable = true
	st.Regs.Framebuffer.OutputMerger.DepthTestEnable = true
	st.Regs.Framebuffer.OutputMerger.DepthFunc = regs.CompareLessThan

	m.SyncAll(&st.Regs)
	m.Cur.Viewport = gpucore.Viewport{Width: 400, Height: 240}
	if n := m.Apply(rec); n == 0 {
		t.Fatal("first Apply issued no calls")
	}
	before := rec.Counts().StateChanges

	m.SyncAll(&st.Regs)
	if n := m.Apply(rec); n != 0 {
		t.Errorf("second Apply issued %d calls, want 0", n)
	}
	if got := rec.Counts().StateChanges; got != before {
		t.Errorf("state changes grew from %d to %d", before, got)
	}
	if m.Applied() != m.Cur {
		t.Error("applied snapshot differs from Cur")
	}
}

func TestApplyPushesOnlyChanges(t *testing.T) {
	rec := gputest.NewRecorder()
	m := NewMirror(rec.Capabilities())
	st := regs.NewState()
	m.SyncAll(&st.Regs)
	m.Apply(rec)

	st.Regs.Rasterizer.CullMode = regs.CullKeepCounterClockWise
	m.SyncAll(&st.Regs)
	if n := m.Apply(rec); n != 1 {
		t.Errorf("Apply after cull change issued %d calls, want 1", n)
	}

	m.Invalidate()
	if n := m.Apply(rec); n < 10 {
		t.Errorf("Apply after Invalidate issued %d calls, want every slot", n)
	}
}

func TestColorMaskLogicOpSuppression(t *testing.T) {
	tests := []struct {
		name  string
		blend bool
		op    regs.LogicOp
		want  gputypes.ColorWriteMask
	}{
		{"copy", false, regs.LogicCopy, gputypes.ColorWriteMaskAll},
		{"noop suppresses", false, regs.LogicNoOp, gputypes.ColorWriteMaskNone},
		{"noop ignored with blending", true, regs.LogicNoOp, gputypes.ColorWriteMaskAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := regs.NewState()
			st.Regs.Framebuffer.OutputMerger.AlphaBlendEnable = tt.blend
			st.Regs.Framebuffer.OutputMerger.LogicOp = tt.op
			st.Regs.Framebuffer.OutputMerger.DepthWriteEnable = true
			m := NewMirror(gpucore.Capabilities{})
			m.SyncAll(&st.Regs)
			if m.Cur.ColorWriteMask != tt.want {
				t.Errorf("ColorWriteMask = %v, want %v", m.Cur.ColorWriteMask, tt.want)
			}
			if !m.Cur.DepthStencil.DepthWriteEnable {
				t.Error("depth write disabled")
			}
		})
	}
}

func TestCullModeFlip(t *testing.T) {
	tests := []struct {
		name    string
		mode    regs.CullMode
		flipped bool
		want    gpucore.RasterState
	}{
		{"keep all", regs.CullKeepAll, true, gpucore.RasterState{CullMode: gputypes.CullModeNone, FrontFace: gputypes.FrontFaceCCW}},
		{"cw", regs.CullKeepClockWise, false, gpucore.RasterState{CullMode: gputypes.CullModeBack, FrontFace: gputypes.FrontFaceCW}},
		{"cw flipped", regs.CullKeepClockWise, true, gpucore.RasterState{CullMode: gputypes.CullModeFront, FrontFace: gputypes.FrontFaceCW}},
		{"ccw", regs.CullKeepCounterClockWise, false, gpucore.RasterState{CullMode: gputypes.CullModeBack, FrontFace: gputypes.FrontFaceCCW}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b regs.Block
			b.Rasterizer.CullMode = tt.mode
			m := NewMirror(gpucore.Capabilities{})
			m.FlipY = tt.flipped
			m.SyncCullMode(&b)
			if m.Cur.Raster != tt.want {
				t.Errorf("Raster = %+v, want %+v", m.Cur.Raster, tt.want)
			}
		})
	}
}

func TestStencilOnlyForD24S8(t *testing.T) {
	for _, f := range []regs.DepthFormat{regs.DepthD16, regs.DepthD24, regs.DepthD24S8} {
		var b regs.Block
		b.Framebuffer.DepthFormat = f
		b.Framebuffer.OutputMerger.StencilEnable = true
		m := NewMirror(gpucore.Capabilities{})
		m.SyncStencilTest(&b)
		if got, want := m.Cur.DepthStencil.StencilTestEnable, f == regs.DepthD24S8; got != want {
			t.Errorf("format %d: StencilTestEnable = %v, want %v", f, got, want)
		}
	}
}

func TestDepthWriteOnlyComparesAlways(t *testing.T) {
	var b regs.Block
	b.Framebuffer.AllowDepthStencilWrite = true
	b.Framebuffer.OutputMerger.DepthWriteEnable = true
	b.Framebuffer.OutputMerger.DepthFunc = regs.CompareLessThan
	m := NewMirror(gpucore.Capabilities{})
	m.SyncDepthTest(&b)
	m.SyncDepthWriteMask(&b)
	ds := m.Cur.DepthStencil
	if !ds.DepthTestEnable || ds.DepthCompare != gputypes.CompareFunctionAlways || !ds.DepthWriteEnable {
		t.Errorf("DepthStencil = %+v, want test on, Always, write on", ds)
	}
}

func TestMinMaxEmulation(t *testing.T) {
	tests := []struct {
		name     string
		caps     gpucore.Capabilities
		eq       regs.BlendEquation
		src, dst regs.BlendFactor
		emulate  bool
	}{
		{"add", gpucore.Capabilities{}, regs.BlendAdd, regs.FactorSourceAlpha, regs.FactorOneMinusSourceAlpha, false},
		{"max one one", gpucore.Capabilities{}, regs.BlendMax, regs.FactorOne, regs.FactorOne, false},
		{"min with factors", gpucore.Capabilities{}, regs.BlendMin, regs.FactorSourceAlpha, regs.FactorOne, true},
		{"min hardware", gpucore.Capabilities{BlendMinMaxFactor: true}, regs.BlendMin, regs.FactorSourceAlpha, regs.FactorOne, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b regs.Block
			om := &b.Framebuffer.OutputMerger
			om.AlphaBlendEnable = true
			om.ColorEquation, om.AlphaEquation = tt.eq, regs.BlendAdd
			om.ColorSrc, om.ColorDst = tt.src, tt.dst
			om.AlphaSrc, om.AlphaDst = regs.FactorOne, regs.FactorZero
			m := NewMirror(tt.caps)
			m.SyncBlendEnabled(&b)
			m.SyncBlendFuncs(&b)
			if m.EmulateMinMaxBlend != tt.emulate {
				t.Errorf("EmulateMinMaxBlend = %v, want %v", m.EmulateMinMaxBlend, tt.emulate)
			}
			if tt.emulate && m.Cur.Blend.State.Color != passThrough {
				t.Errorf("Color component = %+v, want pass-through", m.Cur.Blend.State.Color)
			}
		})
	}
}
