package state

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/regs"
)

// BlendOperation converts a blend equation.
func BlendOperation(eq regs.BlendEquation) gputypes.BlendOperation {
	switch eq {
	case regs.BlendSubtract:
		return gputypes.BlendOperationSubtract
	case regs.BlendReverseSubtract:
		return gputypes.BlendOperationReverseSubtract
	case regs.BlendMin:
		return gputypes.BlendOperationMin
	case regs.BlendMax:
		return gputypes.BlendOperationMax
	}
	return gputypes.BlendOperationAdd
}

// BlendFactor converts a blend factor. The host has a single constant
// color, so the constant alpha factors map onto it; SyncBlendColor splats
// the alpha when only alpha constants are used.
func BlendFactor(f regs.BlendFactor) gputypes.BlendFactor {
	switch f {
	case regs.FactorZero:
		return gputypes.BlendFactorZero
	case regs.FactorOne:
		return gputypes.BlendFactorOne
	case regs.FactorSourceColor:
		return gputypes.BlendFactorSrc
	case regs.FactorOneMinusSourceColor:
		return gputypes.BlendFactorOneMinusSrc
	case regs.FactorDestColor:
		return gputypes.BlendFactorDst
	case regs.FactorOneMinusDestColor:
		return gputypes.BlendFactorOneMinusDst
	case regs.FactorSourceAlpha:
		return gputypes.BlendFactorSrcAlpha
	case regs.FactorOneMinusSourceAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	case regs.FactorDestAlpha:
		return gputypes.BlendFactorDstAlpha
	case regs.FactorOneMinusDestAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	case regs.FactorConstantColor, regs.FactorConstantAlpha:
		return gputypes.BlendFactorConstant
	case regs.FactorOneMinusConstantColor, regs.FactorOneMinusConstantAlpha:
		return gputypes.BlendFactorOneMinusConstant
	case regs.FactorSourceAlphaSaturate:
		return gputypes.BlendFactorSrcAlphaSaturated
	}
	return gputypes.BlendFactorOne
}

// CompareFunction converts a test function.
func CompareFunction(f regs.CompareFunc) gputypes.CompareFunction {
	switch f {
	case regs.CompareNever:
		return gputypes.CompareFunctionNever
	case regs.CompareEqual:
		return gputypes.CompareFunctionEqual
	case regs.CompareNotEqual:
		return gputypes.CompareFunctionNotEqual
	case regs.CompareLessThan:
		return gputypes.CompareFunctionLess
	case regs.CompareLessThanOrEqual:
		return gputypes.CompareFunctionLessEqual
	case regs.CompareGreaterThan:
		return gputypes.CompareFunctionGreater
	case regs.CompareGreaterThanOrEqual:
		return gputypes.CompareFunctionGreaterEqual
	}
	return gputypes.CompareFunctionAlways
}

// StencilOperation converts a stencil action.
func StencilOperation(a regs.StencilAction) gputypes.StencilOperation {
	switch a {
	case regs.StencilZero:
		return gputypes.StencilOperationZero
	case regs.StencilReplace:
		return gputypes.StencilOperationReplace
	case regs.StencilIncrement:
		return gputypes.StencilOperationIncrementClamp
	case regs.StencilDecrement:
		return gputypes.StencilOperationDecrementClamp
	case regs.StencilInvert:
		return gputypes.StencilOperationInvert
	case regs.StencilIncrementWrap:
		return gputypes.StencilOperationIncrementWrap
	case regs.StencilDecrementWrap:
		return gputypes.StencilOperationDecrementWrap
	}
	return gputypes.StencilOperationKeep
}

// AddressMode converts a wrap mode. Border modes clamp to the edge; the
// fragment shader substitutes the border color outside [0, 1].
func AddressMode(w regs.WrapMode) gputypes.AddressMode {
	switch w {
	case regs.WrapRepeat, regs.WrapRepeat2, regs.WrapRepeat3:
		return gputypes.AddressModeRepeat
	case regs.WrapMirroredRepeat:
		return gputypes.AddressModeMirrorRepeat
	}
	return gputypes.AddressModeClampToEdge
}

// IsBorderWrap reports whether w samples the border color outside the texture.
func IsBorderWrap(w regs.WrapMode) bool {
	return w == regs.WrapClampToBorder || w == regs.WrapClampToBorder2
}

// FilterMode converts a texture filter.
func FilterMode(f regs.TextureFilter) gputypes.FilterMode {
	if f == regs.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// PrimitiveTopology converts a draw topology. Fans have no host
// equivalent; callers expand them into lists first.
func PrimitiveTopology(t regs.TriangleTopology) gputypes.PrimitiveTopology {
	if t == regs.TopologyStrip {
		return gputypes.PrimitiveTopologyTriangleStrip
	}
	return gputypes.PrimitiveTopologyTriangleList
}

// ColorRGBA8 converts a packed RGBA8 constant to a normalized color.
func ColorRGBA8(c [4]uint8) gputypes.Color {
	return gputypes.Color{
		R: float64(c[0]) / 255,
		G: float64(c[1]) / 255,
		B: float64(c[2]) / 255,
		A: float64(c[3]) / 255,
	}
}
