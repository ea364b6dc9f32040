package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/gputest"
	"github.com/gogpu/pica/internal/state"
	"github.com/gogpu/pica/regs"
)

// fakeCompiler counts compilations and fails sources containing fail.
type fakeCompiler struct {
	calls int
	fail  string
}

func (f *fakeCompiler) compile(src string) ([]uint32, error) {
	f.calls++
	if f.fail != "" && strings.Contains(src, f.fail) {
		return nil, errors.New("fake compile error")
	}
	return []uint32{spirvMagic, uint32(len(src))}, nil
}

func newTestManager(t *testing.T, fc *fakeCompiler, dir string) (*Manager, *gputest.Recorder) {
	t.Helper()
	rec := gputest.NewRecorder()
	m := NewManager(rec, 0x0004000000030000, Options{CacheDir: dir, Compiler: fc.compile})
	t.Cleanup(m.Destroy)
	return m, rec
}

func TestFragmentShaderCompiledOnce(t *testing.T) {
	fc := &fakeCompiler{}
	m, rec := newTestManager(t, fc, "")
	st := regs.NewState()

	for i := 0; i < 3; i++ {
		if !m.UseFragmentShader(&st.Regs, false) {
			t.Fatal("UseFragmentShader failed")
		}
	}
	if fc.calls != 1 {
		t.Errorf("compiled %d times, want 1", fc.calls)
	}
	first := m.Programs().Fragment

	st.Regs.Framebuffer.OutputMerger.AlphaTestEnable = true
	st.Regs.Framebuffer.OutputMerger.AlphaTestFunc = regs.CompareEqual
	m.UseFragmentShader(&st.Regs, false)
	if m.Programs().Fragment == first {
		t.Error("alpha test change reused the old program")
	}

	// Constant colors are uniforms and must not recompile.
	st.Regs.Texturing.TevStages[0].ConstColor = [4]uint8{9, 9, 9, 9}
	m.UseFragmentShader(&st.Regs, false)
	if got := m.Stats().Compiled; got != 2 {
		t.Errorf("Compiled = %d, want 2", got)
	}
	if got := rec.Counts().ShaderModules; got != 2 {
		t.Errorf("ShaderModules = %d, want 2", got)
	}
}

func TestFragmentShaderFallback(t *testing.T) {
	fc := &fakeCompiler{fail: "fog_factor(i32"}
	m, _ := newTestManager(t, fc, "")
	st := regs.NewState()
	st.Regs.Texturing.FogMode = regs.FogFog

	if m.UseFragmentShader(&st.Regs, false) {
		t.Fatal("UseFragmentShader succeeded with a failing compiler")
	}
	if m.Programs().Fragment == gpucore.InvalidID {
		t.Fatal("no pass-through program selected")
	}
	calls := fc.calls
	m.UseFragmentShader(&st.Regs, false)
	if fc.calls != calls {
		t.Error("failed configuration was compiled again")
	}
	s := m.Stats()
	if s.Failures != 1 || s.Fallbacks != 2 {
		t.Errorf("Stats = %+v, want 1 failure and 2 fallbacks", s)
	}
}

func TestVertexShaderSelection(t *testing.T) {
	fc := &fakeCompiler{}
	m, _ := newTestManager(t, fc, "")
	st, setup := testProgram(encode(opMOV, 0, 0, 0), encode(opEND, 0, 0, 0))

	m.UseTrivialGeometryShader()
	if !m.UseProgrammableVertexShader(&st.Regs, setup) {
		t.Fatal("UseProgrammableVertexShader failed")
	}
	plain := m.Programs().Vertex

	st.Regs.Lighting.Disable = false
	m.UseFixedGeometryShader(&st.Regs)
	m.UseProgrammableVertexShader(&st.Regs, setup)
	if m.Programs().Vertex == plain {
		t.Error("fixed geometry epilogue reused the trivial program")
	}

	st.Regs.Lighting.Disable = true
	m.UseFixedGeometryShader(&st.Regs)
	m.UseProgrammableVertexShader(&st.Regs, setup)
	if m.Programs().Vertex != plain {
		t.Error("unlit draw did not fall back to the trivial epilogue")
	}

	setup.ProgramCode[0] = 0x24 << 26
	if m.UseProgrammableVertexShader(&st.Regs, setup) {
		t.Error("flow control program was accepted")
	}

	if err := m.UseTrivialVertexShader(); err != nil {
		t.Fatalf("UseTrivialVertexShader: %v", err)
	}
	if m.Programs().Vertex == plain {
		t.Error("trivial vertex shader not selected")
	}
}

func TestApplyTo(t *testing.T) {
	fc := &fakeCompiler{}
	m, _ := newTestManager(t, fc, "")
	st := regs.NewState()
	m.UseFragmentShader(&st.Regs, false)
	if err := m.UseTrivialVertexShader(); err != nil {
		t.Fatal(err)
	}
	var hs state.HostState
	m.ApplyTo(&hs)
	if hs.Programs != m.Programs() {
		t.Errorf("Programs = %+v, want %+v", hs.Programs, m.Programs())
	}
}

func TestDestroyReleasesModules(t *testing.T) {
	fc := &fakeCompiler{}
	rec := gputest.NewRecorder()
	m := NewManager(rec, 1, Options{Compiler: fc.compile})
	st := regs.NewState()
	m.UseFragmentShader(&st.Regs, false)
	if err := m.UseTrivialVertexShader(); err != nil {
		t.Fatal(err)
	}
	if rec.Counts().ShadersAlive == 0 {
		t.Fatal("no modules created")
	}
	m.Destroy()
	if n := rec.Counts().ShadersAlive; n != 0 {
		t.Errorf("%d modules alive after Destroy", n)
	}
}
