package shader

import (
	"fmt"

	"github.com/gogpu/pica/regs"
)

func tevSource(src regs.TevSource, stage int) string {
	switch src {
	case regs.SrcPrimaryColor:
		return "primary"
	case regs.SrcPrimaryFragmentColor:
		return "primary_frag"
	case regs.SrcSecondaryFragmentColor:
		return "secondary_frag"
	case regs.SrcTexture0:
		return "t0"
	case regs.SrcTexture1:
		return "t1"
	case regs.SrcTexture2:
		return "t2"
	case regs.SrcTexture3:
		return "t3"
	case regs.SrcPreviousBuffer:
		return "combiner_buffer"
	case regs.SrcConstant:
		return uni("fsu", fsuConstColor+stage)
	case regs.SrcPrevious:
		return "last"
	}
	return "vec4<f32>(0.0)"
}

func colorModifier(m regs.ColorModifier, src string) string {
	switch m {
	case regs.ColorModOneMinusSourceColor:
		return fmt.Sprintf("(vec3<f32>(1.0) - %s.rgb)", src)
	case regs.ColorModSourceAlpha:
		return fmt.Sprintf("vec3<f32>(%s.a)", src)
	case regs.ColorModOneMinusSourceAlpha:
		return fmt.Sprintf("vec3<f32>(1.0 - %s.a)", src)
	case regs.ColorModSourceRed:
		return fmt.Sprintf("vec3<f32>(%s.r)", src)
	case regs.ColorModOneMinusSourceRed:
		return fmt.Sprintf("vec3<f32>(1.0 - %s.r)", src)
	case regs.ColorModSourceGreen:
		return fmt.Sprintf("vec3<f32>(%s.g)", src)
	case regs.ColorModOneMinusSourceGreen:
		return fmt.Sprintf("vec3<f32>(1.0 - %s.g)", src)
	case regs.ColorModSourceBlue:
		return fmt.Sprintf("vec3<f32>(%s.b)", src)
	case regs.ColorModOneMinusSourceBlue:
		return fmt.Sprintf("vec3<f32>(1.0 - %s.b)", src)
	}
	return src + ".rgb"
}

func alphaModifier(m regs.AlphaModifier, src string) string {
	switch m {
	case regs.AlphaModOneMinusSourceAlpha:
		return fmt.Sprintf("(1.0 - %s.a)", src)
	case regs.AlphaModSourceRed:
		return src + ".r"
	case regs.AlphaModOneMinusSourceRed:
		return fmt.Sprintf("(1.0 - %s.r)", src)
	case regs.AlphaModSourceGreen:
		return src + ".g"
	case regs.AlphaModOneMinusSourceGreen:
		return fmt.Sprintf("(1.0 - %s.g)", src)
	case regs.AlphaModSourceBlue:
		return src + ".b"
	case regs.AlphaModOneMinusSourceBlue:
		return fmt.Sprintf("(1.0 - %s.b)", src)
	}
	return src + ".a"
}

// combine returns the operation applied to the three inputs. one and zero
// are the constants of the operand type.
func combine(op regs.TevOp, in [3]string, one, zero string) string {
	switch op {
	case regs.OpReplace:
		return in[0]
	case regs.OpModulate:
		return fmt.Sprintf("%s * %s", in[0], in[1])
	case regs.OpAdd:
		return fmt.Sprintf("min(%s + %s, %s)", in[0], in[1], one)
	case regs.OpAddSigned:
		return fmt.Sprintf("clamp(%s + %s - %s * 0.5, %s, %[3]s)", in[0], in[1], one, zero)
	case regs.OpLerp:
		return fmt.Sprintf("%s * %s + %s * (%s - %[2]s)", in[0], in[2], in[1], one)
	case regs.OpSubtract:
		return fmt.Sprintf("max(%s - %s, %s)", in[0], in[1], zero)
	case regs.OpMultiplyThenAdd:
		return fmt.Sprintf("min(%s * %s + %s, %s)", in[0], in[1], in[2], one)
	case regs.OpAddThenMultiply:
		return fmt.Sprintf("min(%s + %s, %s) * %s", in[0], in[1], one, in[2])
	}
	return zero
}

func writeTevStage(w *writer, st *regs.TevStage, stage int) {
	if st.IsPassThrough() {
		return
	}
	w.open("{")
	var c, a [3]string
	for i := range c {
		c[i] = fmt.Sprintf("c%d", i)
		a[i] = fmt.Sprintf("a%d", i)
		w.line("let c%d = %s;", i, colorModifier(st.ColorModifier[i], tevSource(st.ColorSource[i], stage)))
		w.line("let a%d = %s;", i, alphaModifier(st.AlphaModifier[i], tevSource(st.AlphaSource[i], stage)))
	}
	switch st.ColorOp {
	case regs.OpDot3RGB, regs.OpDot3RGBA:
		w.line("let color_out = vec3<f32>(clamp(dot(c0 - vec3<f32>(0.5), c1 - vec3<f32>(0.5)) * 4.0, 0.0, 1.0));")
	default:
		w.line("let color_out = %s;", combine(st.ColorOp, c, "vec3<f32>(1.0)", "vec3<f32>(0.0)"))
	}
	if st.ColorOp == regs.OpDot3RGBA {
		w.line("let alpha_out = color_out.r;")
	} else {
		w.line("let alpha_out = %s;", combine(st.AlphaOp, a, "1.0", "0.0"))
	}
	w.line("last = clamp(vec4<f32>(color_out * %d.0, alpha_out * %d.0), vec4<f32>(0.0), vec4<f32>(1.0));",
		1<<st.ColorScale, 1<<st.AlphaScale)
	w.close()
}
