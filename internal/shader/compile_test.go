package shader

import (
	"testing"

	"github.com/gogpu/pica/regs"
)

const spirvMagic = 0x07230203

func TestCompileGeneratedShaders(t *testing.T) {
	pt := PassThroughFSConfig()
	tests := []struct {
		name string
		src  string
	}{
		{"trivial vs", GenerateTrivialVertexShader(GSTrivial)},
		{"trivial vs fixed gs", GenerateTrivialVertexShader(GSFixed)},
		{"pass-through fs", GenerateFragmentShader(&pt)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, err := Compile(tt.src)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if len(words) == 0 || words[0] != spirvMagic {
				t.Fatalf("bad SPIR-V header")
			}
		})
	}
}

func TestCompileFragmentVariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *regs.Block)
		minmax bool
	}{
		{"default", func(*regs.Block) {}, false},
		{"texture with border", func(r *regs.Block) {
			r.Texturing.Texture0Enable = true
			r.Texturing.Texture1Enable = true
			r.Texturing.Units[0].Config.WrapS = regs.WrapClampToBorder
			r.Texturing.Units[0].Config.WrapT = regs.WrapClampToBorder
		}, false},
		{"alpha test and scissor", func(r *regs.Block) {
			r.Framebuffer.OutputMerger.AlphaTestEnable = true
			r.Framebuffer.OutputMerger.AlphaTestFunc = regs.CompareLessThan
			r.Rasterizer.Scissor.Mode = regs.ScissorExclude
			r.Rasterizer.ClipEnable = true
		}, false},
		{"fog", func(r *regs.Block) {
			r.Texturing.FogMode = regs.FogFog
		}, false},
		{"lighting", func(r *regs.Block) {
			l := &r.Lighting
			l.Disable = false
			l.NumLights = 2
			l.LightEnable[1] = 3
			l.D0Enable = true
			l.D1Enable = true
			l.Lights[3].DistAttenEnable = true
		}, false},
		{"shadow 2d", func(r *regs.Block) {
			r.Texturing.Texture0Enable = true
			r.Texturing.Units[0].Config.Type = regs.TextureShadow2D
			r.Texturing.Units[0].Config.ShadowPersp = true
		}, false},
		{"shadow cube", func(r *regs.Block) {
			r.Texturing.Texture0Enable = true
			r.Texturing.Units[0].Config.Type = regs.TextureShadowCube
		}, false},
		{"texture cube", func(r *regs.Block) {
			r.Texturing.Texture0Enable = true
			r.Texturing.Units[0].Config.Type = regs.TextureCube
		}, false},
		{"proctex", func(r *regs.Block) {
			r.Texturing.Texture3Enable = true
			r.Texturing.ProcTex.NoiseEnable = true
		}, false},
		{"shadow rendering", func(r *regs.Block) {
			r.Framebuffer.OutputMerger.FragmentOperationMode = regs.FragmentOpShadow
		}, false},
		{"minmax blend", func(r *regs.Block) {
			om := &r.Framebuffer.OutputMerger
			om.AlphaBlendEnable = true
			om.ColorEquation = regs.BlendMin
			om.AlphaEquation = regs.BlendMax
		}, true},
		{"logic op", func(r *regs.Block) {
			r.Framebuffer.OutputMerger.LogicOp = regs.LogicNand
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := regs.NewState()
			st.Regs.Lighting.Disable = true
			tt.mutate(&st.Regs)
			cfg := FSConfigFromRegs(&st.Regs, tt.minmax)
			words, err := Compile(GenerateFragmentShader(&cfg))
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if len(words) == 0 || words[0] != spirvMagic {
				t.Fatalf("bad SPIR-V header")
			}
		})
	}
}

func TestWordsBytesRoundTrip(t *testing.T) {
	words := []uint32{spirvMagic, 0x00010300, 0xdeadbeef, 0}
	b := wordsToBytes(words)
	if b[0] != 0x03 || b[3] != 0x07 {
		t.Fatalf("not little-endian: % x", b[:4])
	}
	got := bytesToWords(b)
	for i := range words {
		if got[i] != words[i] {
			t.Errorf("word %d = %#x, want %#x", i, got[i], words[i])
		}
	}
}
