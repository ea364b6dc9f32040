package shader

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/regs"
)

var (
	//go:embed shaders/fs_lighting.wgsl
	fsLightingWGSL string
	//go:embed shaders/fs_fog.wgsl
	fsFogWGSL string
	//go:embed shaders/fs_shadow.wgsl
	fsShadowWGSL string
	//go:embed shaders/fs_proctex.wgsl
	fsProcTexWGSL string
)

// GenerateFragmentShader returns the WGSL source of the fragment shader for cfg.
func GenerateFragmentShader(cfg *FSConfig) string {
	var w writer
	writeFSDecls(&w)
	writeFSHelpers(&w, cfg)

	w.line("@fragment")
	w.open("fn main(in: FSIn) -> FSOut {")
	w.line("var out: FSOut;")
	w.line("let primary = round(in.color * 255.0) / 255.0;")
	writeTextures(&w, cfg)

	if cfg.UserClip {
		w.open("if (in.clip < 0.0) {")
		w.line("discard;")
		w.close()
	}
	writeScissor(&w, cfg.ScissorMode)

	w.line("var primary_frag = vec4<f32>(0.0);")
	w.line("var secondary_frag = vec4<f32>(0.0);")
	if cfg.Lighting.Enable {
		writeLighting(&w, &cfg.Lighting)
	}

	w.line("var combiner_buffer = vec4<f32>(0.0);")
	w.line("var next_buffer = %s;", uni("fsu", fsuCombinerBuffer))
	w.line("var last = vec4<f32>(0.0);")
	for i := range cfg.Tev {
		writeTevStage(&w, &cfg.Tev[i], i)
		if i < 4 {
			w.line("combiner_buffer = next_buffer;")
			if cfg.UpdateBufferRGB[i] {
				w.line("next_buffer = vec4<f32>(last.rgb, next_buffer.a);")
			}
			if cfg.UpdateBufferAlpha[i] {
				w.line("next_buffer.a = last.a;")
			}
		}
	}

	writeAlphaTest(&w, cfg.AlphaTestFunc)

	w.line("var depth = in.position.z * %s.y + %[1]s.z;", uni("fsu", fsuAlphaDepth))
	if !cfg.ZBuffer {
		w.line("depth = depth / in.position.w;")
	}
	w.line("out.depth = clamp(depth, 0.0, 1.0);")

	if cfg.FogMode == regs.FogFog {
		index := "depth * 128.0"
		if cfg.FogFlip {
			index = "(1.0 - depth) * 128.0"
		}
		w.line("let fog = fog_factor(i32(%s.x), %s);", uni("fsu", fsuMisc), index)
		w.line("last = vec4<f32>(mix(%s.rgb, last.rgb, fog), last.a);", uni("fsu", fsuFogColor))
	}

	switch {
	case cfg.ShadowRendering:
		w.line("let d = u32(clamp(depth, 0.0, 1.0) * 16777215.0);")
		w.line("let s = u32(last.g * 255.0);")
		w.line("out.color = vec4<f32>(f32((d >> 16u) & 255u), f32((d >> 8u) & 255u), f32(d & 255u), f32(s)) / 255.0;")
	case cfg.Blend.Enable:
		writeBlend(&w, &cfg.Blend)
		w.line("out.color = last;")
	case cfg.LogicOp != regs.LogicCopy:
		writeLogicOp(&w, cfg.LogicOp)
		w.line("out.color = last;")
	default:
		w.line("out.color = last;")
	}
	w.line("return out;")
	w.close()
	return w.String()
}

// writeFSHelpers emits the helper functions the features of cfg call.
func writeFSHelpers(w *writer, cfg *FSConfig) {
	var helpers []string
	if cfg.Lighting.Enable {
		helpers = append(helpers, fsLightingWGSL)
	}
	if cfg.FogMode == regs.FogFog {
		helpers = append(helpers, fsFogWGSL)
	}
	if cfg.UsesShadowTexture() {
		helpers = append(helpers, fsShadowWGSL)
	}
	if cfg.ProcTex.Enable {
		helpers = append(helpers, fsProcTexWGSL)
	}
	for _, h := range helpers {
		w.raw(h)
		w.line("")
	}
}

func writeFSDecls(w *writer) {
	writeUniformBlock(w, "FSUniforms", "fsu", gpucore.BufferFSUniforms, FSUniformSlots)
	g := gpucore.BindGroupBuffers
	w.line("@group(%d) @binding(%d) var<storage, read> lut_lf: array<vec2<f32>>;", g, gpucore.BufferLUTLightingFog)
	w.line("@group(%d) @binding(%d) var<storage, read> lut_rg: array<vec2<f32>>;", g, gpucore.BufferLUTProcTexRG)
	w.line("@group(%d) @binding(%d) var<storage, read> lut_rgba: array<vec4<f32>>;", g, gpucore.BufferLUTProcTexRGBA)

	g = gpucore.BindGroupTextures
	for u := gpucore.TextureUnit0; u <= gpucore.TextureUnit2; u++ {
		w.line("@group(%d) @binding(%d) var tex%d: texture_2d<f32>;", g, gpucore.TextureBindingIndex(u), u)
		w.line("@group(%d) @binding(%d) var samp%d: sampler;", g, gpucore.SamplerBindingIndex(u), u)
	}
	w.line("@group(%d) @binding(%d) var tex_cube: texture_cube<f32>;", g, gpucore.TextureBindingIndex(gpucore.TextureUnitCube))
	w.line("@group(%d) @binding(%d) var samp_cube: sampler;", g, gpucore.SamplerBindingIndex(gpucore.TextureUnitCube))
	for i, name := range []string{"shadow_px", "shadow_nx", "shadow_py", "shadow_ny", "shadow_pz", "shadow_nz", "color_buffer"} {
		w.line("@group(%d) @binding(%d) var %s: texture_2d<f32>;", g, gpucore.ImageBindingIndex(gpucore.ImageSlot(i)), name)
	}
	w.line("")
	writeVaryings(w, "FSIn")
	w.open("struct FSOut {")
	w.line("@location(0) color: vec4<f32>,")
	w.line("@builtin(frag_depth) depth: f32,")
	w.close()
	w.line("")
}

// writeTextures samples every unit up front so that implicit derivatives
// are taken in uniform control flow.
func writeTextures(w *writer, cfg *FSConfig) {
	bias := uni("fsu", fsuLodBias)
	shadowBias := uni("fsu", fsuAlphaDepth) + ".w"
	coords := [3]string{"in.tc0", "in.tc1", "in.tc2"}
	if cfg.Texture2UseCoord1 {
		coords[2] = "in.tc1"
	}
	for unit := 0; unit < regs.NumTextureUnits; unit++ {
		if !cfg.TextureEnable[unit] {
			w.line("let t%d = vec4<f32>(0.0);", unit)
			continue
		}
		tc := coords[unit]
		typ := regs.Texture2D
		if unit == 0 {
			typ = cfg.Texture0Type
		}
		lod := fmt.Sprintf("%s.%c", bias, components[unit])
		switch typ {
		case regs.Texture2D:
			w.line("var t%d = textureSampleBias(tex%[1]d, samp%[1]d, %s, %s);", unit, tc, lod)
		case regs.TextureProjection2D:
			tc = "(in.tc0 / in.tc0_w)"
			w.line("var t%d = textureSampleBias(tex%[1]d, samp%[1]d, %s, %s);", unit, tc, lod)
		case regs.TextureCube:
			w.line("let t%d = textureSampleBias(tex_cube, samp_cube, vec3<f32>(in.tc0, in.tc0_w), %s);", unit, lod)
			continue
		case regs.TextureShadow2D:
			uv := "in.tc0"
			if cfg.ShadowTexturePersp {
				uv = "(in.tc0 / in.tc0_w)"
			}
			w.line("let t%d = shadow_2d(%s, in.tc0_w, %s);", unit, uv, shadowBias)
			continue
		case regs.TextureShadowCube:
			w.line("let t%d = shadow_cube(in.tc0, in.tc0_w, %s);", unit, shadowBias)
			continue
		default:
			w.line("let t%d = vec4<f32>(0.0);", unit)
			continue
		}
		border := cfg.Border[unit]
		var cond []string
		if border[0] {
			cond = append(cond, fmt.Sprintf("%s.x < 0.0 || %[1]s.x > 1.0", tc))
		}
		if border[1] {
			cond = append(cond, fmt.Sprintf("%s.y < 0.0 || %[1]s.y > 1.0", tc))
		}
		if len(cond) > 0 {
			expr := cond[0]
			if len(cond) == 2 {
				expr += " || " + cond[1]
			}
			w.open("if (%s) {", expr)
			w.line("t%d = %s;", unit, uni("fsu", fsuBorderColor+unit))
			w.close()
		}
	}
	if cfg.ProcTex.Enable {
		writeProcTex(w, &cfg.ProcTex)
	} else {
		w.line("let t3 = vec4<f32>(0.0);")
	}
}

func writeScissor(w *writer, mode regs.ScissorMode) {
	if mode == regs.ScissorDisabled {
		return
	}
	sc := uni("fsu", fsuScissor)
	inside := fmt.Sprintf("(in.position.x >= %s.x && in.position.y >= %[1]s.y && in.position.x < %[1]s.z && in.position.y < %[1]s.w)", sc)
	if mode == regs.ScissorInclude {
		inside = "!" + inside
	}
	w.open("if (%s) {", inside)
	w.line("discard;")
	w.close()
}

func writeAlphaTest(w *writer, fn regs.CompareFunc) {
	ref := fmt.Sprintf("i32(round(%s.x * 255.0))", uni("fsu", fsuAlphaDepth))
	var fail string
	switch fn {
	case regs.CompareAlways:
		return
	case regs.CompareNever:
		fail = "true"
	case regs.CompareEqual:
		fail = "alpha != " + ref
	case regs.CompareNotEqual:
		fail = "alpha == " + ref
	case regs.CompareLessThan:
		fail = "alpha >= " + ref
	case regs.CompareLessThanOrEqual:
		fail = "alpha > " + ref
	case regs.CompareGreaterThan:
		fail = "alpha <= " + ref
	case regs.CompareGreaterThanOrEqual:
		fail = "alpha < " + ref
	default:
		return
	}
	w.line("let alpha = i32(last.a * 255.0);")
	w.open("if (%s) {", fail)
	w.line("discard;")
	w.close()
}

func lutOffset(sampler int) string {
	return fmt.Sprintf("i32(%s.%c)", uni("fsu", fsuLightingLUT+sampler/4), components[sampler%4])
}

func lightingInput(in regs.LightingInput) string {
	switch in {
	case regs.LightInputVH:
		return "dot(view, normalize(half_vector))"
	case regs.LightInputNV:
		return "dot(normal, view)"
	case regs.LightInputLN:
		return "dot(light_vector, normal)"
	}
	return "dot(normal, normalize(half_vector))"
}

func lutLookup(sampler int, c LutConfig) string {
	if c.Abs {
		return fmt.Sprintf("lut_unsigned(%s, abs(%s))", lutOffset(sampler), lightingInput(c.Input))
	}
	return fmt.Sprintf("lut_signed(%s, %s)", lutOffset(sampler), lightingInput(c.Input))
}

func writeLighting(w *writer, lc *LightingConfig) {
	w.line("var diffuse_sum = vec4<f32>(0.0, 0.0, 0.0, 1.0);")
	w.line("var specular_sum = vec4<f32>(0.0, 0.0, 0.0, 1.0);")
	w.line("let normal = quaternion_rotate(normalize(in.normquat), vec3<f32>(0.0, 0.0, 1.0));")
	w.line("let view = normalize(in.view);")
	for i := 0; i < int(lc.NumLights); i++ {
		l := lc.Lights[i]
		base := fsuLights + int(l.Num)*fsuLightStride
		w.open("{")
		w.line("let lpos = %s.xyz;", uni("fsu", base+lightPosition))
		if l.Directional {
			w.line("let light_vector = normalize(lpos);")
		} else {
			w.line("let light_vector = normalize(lpos + in.view);")
		}
		w.line("let half_vector = view + light_vector;")
		if l.TwoSided {
			w.line("let dot_product = abs(dot(light_vector, normal));")
		} else {
			w.line("let dot_product = max(dot(light_vector, normal), 0.0);")
		}
		clampH := "1.0"
		if lc.ClampHighlights {
			clampH = "sign(dot_product)"
		}
		atten := "1.0"
		if l.DistAtten {
			da := uni("fsu", base+lightDistAtten)
			w.line("let dist_atten = lut_unsigned(%s, clamp(%s.y * length(-in.view - lpos) + %[2]s.x, 0.0, 1.0));",
				lutOffset(regs.LightingSamplerDA+int(l.Num)), da)
			atten = "dist_atten"
		}
		d0, d1 := "1.0", "1.0"
		if lc.D0.Enable {
			d0 = fmt.Sprintf("(%s * %s.y)", lutLookup(regs.LightingSamplerD0, lc.D0), uni("fsu", fsuMisc))
		}
		if lc.D1.Enable {
			d1 = fmt.Sprintf("(%s * %s.z)", lutLookup(regs.LightingSamplerD1, lc.D1), uni("fsu", fsuMisc))
		}
		w.line("let specular_0 = %s * %s.rgb;", d0, uni("fsu", base+lightSpecular0))
		w.line("let specular_1 = %s * %s.rgb;", d1, uni("fsu", base+lightSpecular1))
		w.line("diffuse_sum = diffuse_sum + vec4<f32>((%s.rgb * dot_product + %s.rgb) * %s, 0.0);",
			uni("fsu", base+lightDiffuse), uni("fsu", base+lightAmbient), atten)
		w.line("specular_sum = specular_sum + vec4<f32>((specular_0 + specular_1) * %s * %s, 0.0);", clampH, atten)
		w.close()
	}
	w.line("diffuse_sum = diffuse_sum + vec4<f32>(%s.rgb, 0.0);", uni("fsu", fsuAmbient))
	w.line("primary_frag = clamp(diffuse_sum, vec4<f32>(0.0), vec4<f32>(1.0));")
	w.line("secondary_frag = clamp(specular_sum, vec4<f32>(0.0), vec4<f32>(1.0));")
}

func proctexClamp(v string, mode uint8) string {
	switch mode {
	case 0:
		return fmt.Sprintf("select(%s, 0.0, %[1]s > 1.0)", v)
	case 1:
		return fmt.Sprintf("min(%s, 1.0)", v)
	case 2:
		return fmt.Sprintf("fract(%s)", v)
	case 3:
		return fmt.Sprintf("select(1.0 - fract(%s), fract(%[1]s), (i32(%[1]s) %% 2) == 0)", v)
	case 4:
		return fmt.Sprintf("select(0.0, 1.0, %s > 0.5)", v)
	}
	return v
}

func proctexCombine(c uint8) string {
	switch c {
	case 1:
		return "u * u"
	case 2:
		return "v"
	case 3:
		return "v * v"
	case 4:
		return "(u + v) * 0.5"
	case 5:
		return "(u * u + v * v) * 0.5"
	case 6:
		return "min(sqrt(u * u + v * v), 1.0)"
	case 7:
		return "min(u, v)"
	case 8:
		return "max(u, v)"
	case 9:
		return "min(((u + v) * 0.5 + sqrt(u * u + v * v)) * 0.5, 1.0)"
	}
	return "u"
}

func writeProcTex(w *writer, p *ProcTexConfig) {
	noise := uni("fsu", fsuProcTexNoise)
	noise2 := uni("fsu", fsuProcTexNoise2)
	offs := uni("fsu", fsuProcTexOffsets)
	color := uni("fsu", fsuProcTexColor)

	w.line("var t3: vec4<f32>;")
	w.open("{")
	w.line("var uv = abs(in.tc%d);", p.Coord)
	if p.NoiseEnable {
		w.line("let amp = vec2<f32>(%s.x, %[1]s.w);", noise)
		w.line("let freq = vec2<f32>(%s.y, %s.x);", noise, noise2)
		w.line("let phase = vec2<f32>(%s.z, %s.y);", noise, noise2)
		w.line("uv = abs(uv + amp * proctex_noise(uv, freq, phase, i32(%s.x)));", offs)
	}
	w.line("let u = %s;", proctexClamp("uv.x", p.UClamp))
	w.line("let v = %s;", proctexClamp("uv.y", p.VClamp))
	w.line("let lut_coord = proctex_lut(i32(%s.y), %s);", offs, proctexCombine(p.ColorCombiner))
	if p.LUTFilter%2 == 1 {
		w.line("t3 = proctex_color_linear(lut_coord, %s.w, %s.w, i32(%s.x), i32(%[3]s.y));", noise2, offs, color)
	} else {
		w.line("t3 = proctex_color_nearest(lut_coord, %s.w, %s.w, i32(%s.x));", noise2, offs, color)
	}
	if p.SeparateAlpha {
		w.line("t3.a = proctex_lut(i32(%s.z), %s);", offs, proctexCombine(p.AlphaCombiner))
	}
	w.close()
}

func blendFactor(f regs.BlendFactor) string {
	switch f {
	case regs.FactorZero:
		return "vec4<f32>(0.0)"
	case regs.FactorOne:
		return "vec4<f32>(1.0)"
	case regs.FactorSourceColor:
		return "src"
	case regs.FactorOneMinusSourceColor:
		return "(vec4<f32>(1.0) - src)"
	case regs.FactorDestColor:
		return "dst"
	case regs.FactorOneMinusDestColor:
		return "(vec4<f32>(1.0) - dst)"
	case regs.FactorSourceAlpha:
		return "vec4<f32>(src.a)"
	case regs.FactorOneMinusSourceAlpha:
		return "vec4<f32>(1.0 - src.a)"
	case regs.FactorDestAlpha:
		return "vec4<f32>(dst.a)"
	case regs.FactorOneMinusDestAlpha:
		return "vec4<f32>(1.0 - dst.a)"
	case regs.FactorConstantColor:
		return "bc"
	case regs.FactorOneMinusConstantColor:
		return "(vec4<f32>(1.0) - bc)"
	case regs.FactorConstantAlpha:
		return "vec4<f32>(bc.a)"
	case regs.FactorOneMinusConstantAlpha:
		return "vec4<f32>(1.0 - bc.a)"
	case regs.FactorSourceAlphaSaturate:
		return "vec4<f32>(vec3<f32>(min(src.a, 1.0 - dst.a)), 1.0)"
	}
	return "vec4<f32>(1.0)"
}

func blendEquation(eq regs.BlendEquation, s, d string) string {
	switch eq {
	case regs.BlendSubtract:
		return fmt.Sprintf("(%s - %s)", s, d)
	case regs.BlendReverseSubtract:
		return fmt.Sprintf("(%s - %s)", d, s)
	case regs.BlendMin:
		return fmt.Sprintf("min(%s, %s)", s, d)
	case regs.BlendMax:
		return fmt.Sprintf("max(%s, %s)", s, d)
	}
	return fmt.Sprintf("(%s + %s)", s, d)
}

func writeBlend(w *writer, b *BlendConfig) {
	w.line("let src = last;")
	w.line("let dst = textureLoad(color_buffer, vec2<i32>(in.position.xy), 0);")
	w.line("let bc = %s;", uni("fsu", fsuBlendColor))
	rgb := blendEquation(b.ColorEq,
		fmt.Sprintf("src.rgb * %s.rgb", blendFactor(b.ColorSrc)),
		fmt.Sprintf("dst.rgb * %s.rgb", blendFactor(b.ColorDst)))
	a := blendEquation(b.AlphaEq,
		fmt.Sprintf("src.a * %s.a", blendFactor(b.AlphaSrc)),
		fmt.Sprintf("dst.a * %s.a", blendFactor(b.AlphaDst)))
	w.line("last = clamp(vec4<f32>(%s, %s), vec4<f32>(0.0), vec4<f32>(1.0));", rgb, a)
}

func logicOpExpr(op regs.LogicOp) string {
	switch op {
	case regs.LogicClear:
		return "vec4<u32>(0u)"
	case regs.LogicAnd:
		return "(s & d)"
	case regs.LogicAndReverse:
		return "(s & ~d)"
	case regs.LogicSet:
		return "vec4<u32>(255u)"
	case regs.LogicCopyInverted:
		return "~s"
	case regs.LogicNoOp:
		return "d"
	case regs.LogicInvert:
		return "~d"
	case regs.LogicNand:
		return "~(s & d)"
	case regs.LogicOr:
		return "(s | d)"
	case regs.LogicNor:
		return "~(s | d)"
	case regs.LogicXor:
		return "(s ^ d)"
	case regs.LogicEquiv:
		return "~(s ^ d)"
	case regs.LogicAndInverted:
		return "(~s & d)"
	case regs.LogicOrReverse:
		return "(s | ~d)"
	case regs.LogicOrInverted:
		return "(~s | d)"
	}
	return "s"
}

func writeLogicOp(w *writer, op regs.LogicOp) {
	w.line("let s = vec4<u32>(round(last * 255.0));")
	w.line("let d = vec4<u32>(round(textureLoad(color_buffer, vec2<i32>(in.position.xy), 0) * 255.0));")
	w.line("last = vec4<f32>(%s & vec4<u32>(255u)) / 255.0;", logicOpExpr(op))
}
