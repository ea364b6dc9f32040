package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/regs"
)

// Software path vertex layout: six vec4 attributes per vertex.
const (
	HWVertexPosition  = 0
	HWVertexColor     = 1
	HWVertexTexCoord  = 2 // tc0.xy, tc1.xy
	HWVertexTexCoord2 = 3 // tc2.xy, tc0.w
	HWVertexQuat      = 4
	HWVertexView      = 5
	HWVertexAttribs   = 6

	// HWVertexStride is the byte stride of a software path vertex.
	HWVertexStride = HWVertexAttribs * 16
)

func writeVSCommon(w *writer) {
	writeUniformBlock(w, "VSUniforms", "vsu", gpucore.BufferVSUniforms, VSUniformSlots)
	w.line("")
	writeVaryings(w, "VSOut")
	w.line("")
	clip := uni("vsu", vsuClipCoef)
	flags := uni("vsu", vsuFlags)
	w.open("fn emit(pos: vec4<f32>, quat: vec4<f32>, color: vec4<f32>, tc0: vec2<f32>, tc1: vec2<f32>, tc2: vec2<f32>, tc0_w: f32, view: vec3<f32>) -> VSOut {")
	w.line("var out: VSOut;")
	w.line("out.position = vec4<f32>(pos.x, pos.y * %s.x, -pos.z, pos.w);", flags)
	w.line("out.normquat = quat;")
	w.line("out.color = min(abs(color), vec4<f32>(1.0));")
	w.line("out.tc0 = tc0;")
	w.line("out.tc1 = tc1;")
	w.line("out.tc2 = tc2;")
	w.line("out.tc0_w = tc0_w;")
	w.line("out.view = view;")
	w.line("out.clip = select(1.0, dot(%s, pos), %s.y > 0.5);", clip, flags)
	w.line("return out;")
	w.close()
	w.line("")
}

// GenerateTrivialVertexShader returns the pass-through vertex shader used when
// vertices were processed on the CPU.
func GenerateTrivialVertexShader(gs GSKind) string {
	var w writer
	writeVSCommon(&w)
	w.open("struct VSIn {")
	w.line("@location(%d) pos: vec4<f32>,", HWVertexPosition)
	w.line("@location(%d) color: vec4<f32>,", HWVertexColor)
	w.line("@location(%d) tc01: vec4<f32>,", HWVertexTexCoord)
	w.line("@location(%d) tc2w: vec4<f32>,", HWVertexTexCoord2)
	w.line("@location(%d) quat: vec4<f32>,", HWVertexQuat)
	w.line("@location(%d) view: vec4<f32>,", HWVertexView)
	w.close()
	w.line("")
	w.line("@vertex")
	w.open("fn main(in: VSIn) -> VSOut {")
	w.line("var quat = in.quat;")
	writeQuatFixup(&w, gs)
	w.line("return emit(in.pos, quat, in.color, in.tc01.xy, in.tc01.zw, in.tc2w.xy, in.tc2w.z, in.view.xyz);")
	w.close()
	return w.String()
}

const vsMathWGSL = `fn sanitize_mul(a: vec4<f32>, b: vec4<f32>) -> vec4<f32> {
    let p = a * b;
    return select(p, vec4<f32>(0.0), (p != p) & (a == a) & (b == b));
}

fn dot3(a: vec4<f32>, b: vec4<f32>) -> f32 {
    let p = sanitize_mul(a, b);
    return p.x + p.y + p.z;
}

fn dot4(a: vec4<f32>, b: vec4<f32>) -> f32 {
    let p = sanitize_mul(a, b);
    return p.x + p.y + p.z + p.w;
}

`

// GenerateVertexShader translates the guest vertex program into WGSL. It fails with
// ErrUnsupported when the program leaves the straight-line subset.
func GenerateVertexShader(cfg *VSConfig, setup *regs.VSSetup) (string, error) {
	end, _, ok := scanProgram(setup.ProgramCode[:], cfg.EntryPoint)
	if !ok {
		return "", fmt.Errorf("%w: vertex program at %#x", ErrUnsupported, cfg.EntryPoint)
	}

	var w writer
	writeVSCommon(&w)
	writeUniformBlock(&w, "PicaUniforms", "pica", gpucore.BufferVSPicaUniforms, VSPicaUniformSlots)
	w.line("")
	w.raw(vsMathWGSL)

	if cfg.NumAttributes > 0 {
		w.open("struct VSIn {")
		for i := 0; i < int(cfg.NumAttributes); i++ {
			w.line("@location(%d) a%d: vec4<f32>,", i, i)
		}
		w.close()
		w.line("")
	}

	w.line("@vertex")
	if cfg.NumAttributes > 0 {
		w.open("fn main(in: VSIn) -> VSOut {")
	} else {
		w.open("fn main() -> VSOut {")
	}
	w.line("var v: array<vec4<f32>, 16>;")
	w.line("var r: array<vec4<f32>, 16>;")
	w.line("var o: array<vec4<f32>, 16>;")
	w.line("var addr = vec2<i32>(0);")
	for i := 0; i < int(cfg.NumAttributes); i++ {
		w.line("v[%d] = in.a%d;", cfg.AttributeRegisters[i], i)
	}
	for pc := int(cfg.EntryPoint); pc < end; pc++ {
		in := instr(setup.ProgramCode[pc])
		op := in.opcode()
		if op == opNOP || op == opEND {
			continue
		}
		desc, _, _, _, _ := in.operands()
		writeInstr(&w, in, swizzle(setup.SwizzleData[desc]))
	}
	writeEpilogue(&w, cfg)
	w.close()
	return w.String(), nil
}

func srcReg(idx uint32, offset string) string {
	switch {
	case idx < 0x10:
		return fmt.Sprintf("v[%d]", idx)
	case idx < 0x20:
		return fmt.Sprintf("r[%d]", idx-0x10)
	}
	u := idx - 0x20
	if offset == "" {
		return fmt.Sprintf("pica.v[%d]", u)
	}
	return fmt.Sprintf("pica.v[clamp(%d + %s, 0, %d)]", u, offset, regs.NumFloatUniforms-1)
}

func srcExpr(reg string, sw swizzle, n int) string {
	var sel strings.Builder
	for c := 0; c < 4; c++ {
		sel.WriteByte(components[sw.selector(n, c)])
	}
	e := reg + "." + sel.String()
	if sw.negate(n) {
		e = "-" + e
	}
	return e
}

func writeInstr(w *writer, in instr, sw swizzle) {
	_, src, addrIdx, dest, offsetSrc := in.operands()
	// Loops are unsupported, so the loop counter offset is always zero.
	offset := [4]string{"", "addr.x", "addr.y", ""}[addrIdx]
	nsrc := 2
	if in.isMAD() {
		nsrc = 3
	}

	w.open("{")
	for n := 0; n < nsrc; n++ {
		off := ""
		if n+1 == offsetSrc {
			off = offset
		}
		w.line("let s%d = %s;", n+1, srcExpr(srcReg(src[n], off), sw, n))
	}

	op := in.opcode()
	if op == opMOVA {
		if sw.destEnabled(0) {
			w.line("addr.x = i32(s1.x);")
		}
		if sw.destEnabled(1) {
			w.line("addr.y = i32(s1.y);")
		}
		w.close()
		return
	}

	var res string
	switch {
	case in.isMAD():
		res = "sanitize_mul(s1, s2) + s3"
	case op == opADD:
		res = "s1 + s2"
	case op == opDP3:
		res = "vec4<f32>(dot3(s1, s2))"
	case op == opDP4:
		res = "vec4<f32>(dot4(s1, s2))"
	case op == opDPH, op == opDPHI:
		res = "vec4<f32>(dot4(vec4<f32>(s1.xyz, 1.0), s2))"
	case op == opDST, op == opDSTI:
		res = "vec4<f32>(1.0, s1.y * s2.y, s1.z, s2.w)"
	case op == opEX2:
		res = "vec4<f32>(exp2(s1.x))"
	case op == opLG2:
		res = "vec4<f32>(log2(s1.x))"
	case op == opMUL:
		res = "sanitize_mul(s1, s2)"
	case op == opSGE, op == opSGEI:
		res = "select(vec4<f32>(0.0), vec4<f32>(1.0), s1 >= s2)"
	case op == opSLT, op == opSLTI:
		res = "select(vec4<f32>(0.0), vec4<f32>(1.0), s1 < s2)"
	case op == opFLR:
		res = "floor(s1)"
	case op == opMAX:
		res = "select(s2, s1, s1 > s2)"
	case op == opMIN:
		res = "select(s2, s1, s1 < s2)"
	case op == opRCP:
		res = "vec4<f32>(1.0 / s1.x)"
	case op == opRSQ:
		res = "vec4<f32>(inverseSqrt(s1.x))"
	default:
		res = "s1"
	}
	w.line("let res = %s;", res)

	dst := fmt.Sprintf("o[%d]", dest)
	if dest >= 0x10 {
		dst = fmt.Sprintf("r[%d]", dest-0x10)
	}
	for c := 0; c < 4; c++ {
		if sw.destEnabled(c) {
			w.line("%s.%c = res.%[2]c;", dst, components[c])
		}
	}
	w.close()
}

// writeEpilogue maps output registers to the varyings by semantic.
func writeEpilogue(w *writer, cfg *VSConfig) {
	var sem [24]string
	for i := range sem {
		sem[i] = "0.0"
	}
	sem[regs.SemPositionW] = "1.0"
	for reg, comps := range cfg.Outputs {
		for c, s := range comps {
			if int(s) < len(sem) {
				sem[s] = fmt.Sprintf("o[%d].%c", reg, components[c])
			}
		}
	}
	vec := func(n int, idx ...regs.Semantic) string {
		parts := make([]string, len(idx))
		for i, s := range idx {
			parts[i] = sem[s]
		}
		return fmt.Sprintf("vec%d<f32>(%s)", n, strings.Join(parts, ", "))
	}
	w.line("let pos = %s;", vec(4, regs.SemPositionX, regs.SemPositionY, regs.SemPositionZ, regs.SemPositionW))
	w.line("var quat = %s;", vec(4, regs.SemQuatX, regs.SemQuatY, regs.SemQuatZ, regs.SemQuatW))
	writeQuatFixup(w, cfg.GS)
	w.line("let color = %s;", vec(4, regs.SemColorR, regs.SemColorG, regs.SemColorB, regs.SemColorA))
	w.line("return emit(pos, quat, color, %s, %s, %s, %s, %s);",
		vec(2, regs.SemTex0U, regs.SemTex0V),
		vec(2, regs.SemTex1U, regs.SemTex1V),
		vec(2, regs.SemTex2U, regs.SemTex2V),
		sem[regs.SemTex0W],
		vec(3, regs.SemViewX, regs.SemViewY, regs.SemViewZ))
}

// writeQuatFixup keeps the quaternion on the w >= 0 hemisphere so that
// neighbouring vertices interpolate along the short arc.
func writeQuatFixup(w *writer, gs GSKind) {
	if gs != GSFixed {
		return
	}
	w.open("if (quat.w < 0.0) {")
	w.line("quat = -quat;")
	w.close()
}
