package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/pica/regs"
)

// identity swizzle: all components written, every source reads xyzw.
const identitySwizzle = 0xf |
	1<<9 | 2<<7 | 3<<5 |
	1<<18 | 2<<16 | 3<<14 |
	1<<27 | 2<<25 | 3<<23

func encode(op, dest, src1, src2 uint32) uint32 {
	return op<<26 | dest<<21 | src1<<12 | src2<<7
}

func testProgram(code ...uint32) (*regs.State, *regs.VSSetup) {
	st := regs.NewState()
	copy(st.VS.ProgramCode[:], code)
	st.VS.SwizzleData[0] = identitySwizzle
	r := &st.Regs
	r.VS.OutputMask = 0b11
	r.Rasterizer.VSOutputTotal = 2
	r.Rasterizer.VSOutputAttributes[0] = [4]regs.Semantic{regs.SemPositionX, regs.SemPositionY, regs.SemPositionZ, regs.SemPositionW}
	r.Rasterizer.VSOutputAttributes[1] = [4]regs.Semantic{regs.SemColorR, regs.SemColorG, regs.SemColorB, regs.SemColorA}
	r.Pipeline.VertexAttributes.NumAttributes = 2
	r.VS.InputRegisterMap[0] = 0
	r.VS.InputRegisterMap[1] = 1
	return st, &st.VS
}

func TestGenerateVertexShader(t *testing.T) {
	tests := []struct {
		name string
		code []uint32
		want []string
	}{
		{
			name: "mov mul",
			code: []uint32{
				encode(opMOV, 0, 0x00, 0),
				encode(opMUL, 1, 0x20, 0x01),
				encode(opEND, 0, 0, 0),
			},
			want: []string{
				"v[0] = in.a0;",
				"v[1] = in.a1;",
				"let s1 = pica.v[0].xyzw;",
				"sanitize_mul(s1, s2)",
				"o[0].x = res.x;",
				"let pos = vec4<f32>(o[0].x, o[0].y, o[0].z, o[0].w);",
				"let color = vec4<f32>(o[1].x, o[1].y, o[1].z, o[1].w);",
			},
		},
		{
			name: "mad with address offset",
			code: []uint32{
				opMAD<<26 | 2<<24 | 1<<22 | 0x21<<10 | 0x10<<5,
				encode(opEND, 0, 0, 0),
			},
			want: []string{
				"let s2 = pica.v[clamp(1 + addr.x, 0, 95)].xyzw;",
				"let s3 = r[0].xyzw;",
				"sanitize_mul(s1, s2) + s3",
				"o[2].w = res.w;",
			},
		},
		{
			name: "nop skipped",
			code: []uint32{
				encode(opNOP, 0, 0, 0),
				encode(opRSQ, 0x10, 0x01, 0),
				encode(opEND, 0, 0, 0),
			},
			want: []string{"inverseSqrt(s1.x)", "r[0].x = res.x;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, setup := testProgram(tt.code...)
			cfg, ok := VSConfigFromRegs(&st.Regs, setup, GSTrivial)
			if !ok {
				t.Fatal("VSConfigFromRegs rejected a supported program")
			}
			src, err := GenerateVertexShader(&cfg, setup)
			if err != nil {
				t.Fatalf("GenerateVertexShader: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(src, w) {
					t.Errorf("source lacks %q", w)
				}
			}
		})
	}
}

func TestGenerateVertexShaderRejectsFlowControl(t *testing.T) {
	st, setup := testProgram(0x24<<26, encode(opEND, 0, 0, 0))
	if _, ok := VSConfigFromRegs(&st.Regs, setup, GSTrivial); ok {
		t.Error("VSConfigFromRegs accepted CALL")
	}
	cfg := VSConfig{}
	if _, err := GenerateVertexShader(&cfg, setup); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestVSConfigTracksProgram(t *testing.T) {
	st, setup := testProgram(encode(opMOV, 0, 0, 0), encode(opEND, 0, 0, 0))
	a, _ := VSConfigFromRegs(&st.Regs, setup, GSTrivial)
	// Code past END does not change the key.
	setup.ProgramCode[5] = 0xdeadbeef
	b, _ := VSConfigFromRegs(&st.Regs, setup, GSTrivial)
	if a != b {
		t.Error("config changed by code after END")
	}
	setup.ProgramCode[0] = encode(opMOV, 1, 0, 0)
	c, _ := VSConfigFromRegs(&st.Regs, setup, GSTrivial)
	if c.ProgramHash == a.ProgramHash {
		t.Error("program hash ignores the program")
	}
	d, _ := VSConfigFromRegs(&st.Regs, setup, GSFixed)
	if d.Hash() == c.Hash() {
		t.Error("hash ignores the geometry epilogue")
	}
}

func TestGenerateTrivialVertexShader(t *testing.T) {
	if src := GenerateTrivialVertexShader(GSTrivial); strings.Contains(src, "quat = -quat") {
		t.Error("trivial epilogue flips the quaternion")
	}
	if src := GenerateTrivialVertexShader(GSFixed); !strings.Contains(src, "quat = -quat") {
		t.Error("fixed epilogue lacks the quaternion fix-up")
	}
}

func TestGenerateFragmentShader(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *regs.Block)
		minmax bool
		want   []string
		reject []string
	}{
		{
			name:   "default",
			mutate: func(*regs.Block) {},
			want:   []string{"let primary = round(in.color * 255.0) / 255.0;", "out.color = last;"},
			reject: []string{"discard", "fn fog_factor", "fn lut_signed", "fn shadow_2d", "fn proctex_noise", "textureSampleBias(tex0"},
		},
		{
			name: "alpha test",
			mutate: func(r *regs.Block) {
				r.Framebuffer.OutputMerger.AlphaTestEnable = true
				r.Framebuffer.OutputMerger.AlphaTestFunc = regs.CompareGreaterThan
			},
			want: []string{"if (alpha <= i32(round(fsu.v[0].x * 255.0)))"},
		},
		{
			name: "texture with border",
			mutate: func(r *regs.Block) {
				r.Texturing.Texture0Enable = true
				r.Texturing.Units[0].Config.WrapS = regs.WrapClampToBorder
			},
			want: []string{"textureSampleBias(tex0, samp0, in.tc0, fsu.v[", "in.tc0.x < 0.0 || in.tc0.x > 1.0"},
		},
		{
			name: "fog flipped",
			mutate: func(r *regs.Block) {
				r.Texturing.FogMode = regs.FogFog
				r.Texturing.FogFlip = true
			},
			want:   []string{"fn fog_factor", "(1.0 - depth) * 128.0", "mix(fsu.v[3].rgb, last.rgb, fog)"},
			reject: []string{"fn lut_signed", "fn shadow_2d"},
		},
		{
			name: "scissor include",
			mutate: func(r *regs.Block) {
				r.Rasterizer.Scissor.Mode = regs.ScissorInclude
			},
			want: []string{"if (!(in.position.x >= fsu.v[1].x"},
		},
		{
			name: "shadow rendering",
			mutate: func(r *regs.Block) {
				r.Framebuffer.OutputMerger.FragmentOperationMode = regs.FragmentOpShadow
			},
			want: []string{"let d = u32(clamp(depth, 0.0, 1.0) * 16777215.0);"},
		},
		{
			name: "shadow cube",
			mutate: func(r *regs.Block) {
				r.Texturing.Texture0Enable = true
				r.Texturing.Units[0].Config.Type = regs.TextureShadowCube
			},
			want:   []string{"let t0 = shadow_cube(in.tc0, in.tc0_w, fsu.v[0].w);", "textureLoad(shadow_nz, p, 0)"},
			reject: []string{"textureSampleBias(tex0"},
		},
		{
			name: "shadow 2d",
			mutate: func(r *regs.Block) {
				r.Texturing.Texture0Enable = true
				r.Texturing.Units[0].Config.Type = regs.TextureShadow2D
			},
			want: []string{
				"let t0 = shadow_2d(in.tc0, in.tc0_w, fsu.v[0].w);",
				"textureDimensions(shadow_px)",
				"textureLoad(shadow_px, p, 0)",
			},
			reject: []string{"textureSampleBias(tex0", "textureLoad(tex0", "textureDimensions(tex0", "any("},
		},
		{
			name: "minmax emulation",
			mutate: func(r *regs.Block) {
				om := &r.Framebuffer.OutputMerger
				om.AlphaBlendEnable = true
				om.ColorEquation = regs.BlendMax
				om.ColorSrc = regs.FactorSourceAlpha
			},
			minmax: true,
			want:   []string{"textureLoad(color_buffer", "max(src.rgb * vec4<f32>(src.a).rgb"},
		},
		{
			name: "logic op xor",
			mutate: func(r *regs.Block) {
				r.Framebuffer.OutputMerger.LogicOp = regs.LogicXor
			},
			want: []string{"vec4<f32>((s ^ d) & vec4<u32>(255u)) / 255.0"},
		},
		{
			name: "lighting",
			mutate: func(r *regs.Block) {
				l := &r.Lighting
				l.Disable = false
				l.NumLights = 1
				l.LightEnable[0] = 2
				l.D0Enable = true
				l.D0Input = regs.LightInputNV
				l.Lights[2].DistAttenEnable = true
			},
			want: []string{
				"fn lut_signed",
				"lut_signed(i32(fsu.v[63].x), dot(normal, view))",
				"lut_unsigned(i32(fsu.v[67].z)",
				"primary_frag = clamp(diffuse_sum",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := regs.NewState()
			st.Regs.Lighting.Disable = true
			tt.mutate(&st.Regs)
			cfg := FSConfigFromRegs(&st.Regs, tt.minmax)
			src := GenerateFragmentShader(&cfg)
			for _, w := range tt.want {
				if !strings.Contains(src, w) {
					t.Errorf("source lacks %q", w)
				}
			}
			for _, w := range tt.reject {
				if strings.Contains(src, w) {
					t.Errorf("source contains %q", w)
				}
			}
		})
	}
}

func TestFSConfigIgnoresConstColor(t *testing.T) {
	st := regs.NewState()
	a := FSConfigFromRegs(&st.Regs, false)
	st.Regs.Texturing.TevStages[2].ConstColor = [4]uint8{1, 2, 3, 4}
	b := FSConfigFromRegs(&st.Regs, false)
	if a != b || a.Hash() != b.Hash() {
		t.Error("constant color changed the fragment config")
	}
}
