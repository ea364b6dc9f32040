// Package state mirrors the host pipeline state derived from guest registers.
//
// Sync functions translate the register block into Mirror.Cur. Apply then
// pushes only the slots that differ from the last applied snapshot, so an
// Apply with no intervening change touches the device zero times.
package state

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/regs"
)

// HostState is one value of every host state slot.
type HostState struct {
	Blend          gpucore.BlendState
	BlendConstant  gputypes.Color
	ColorWriteMask gputypes.ColorWriteMask
	DepthStencil   gpucore.DepthStencilState
	StencilRef     uint32
	Raster         gpucore.RasterState
	Viewport       gpucore.Viewport
	Scissor        gpucore.Scissor
	Targets        gpucore.RenderTargets
	Textures       [gpucore.NumTextureSlots]gpucore.TextureBinding
	Images         [gpucore.NumImageSlots]gpucore.TextureID
	Buffers        [gpucore.NumBufferSlots]gpucore.BufferBinding
	VertexBuffer   gpucore.VertexBufferBinding
	IndexBuffer    gpucore.IndexBufferBinding
	Programs       gpucore.Programs
}

// ColorWriteEnabled reports whether any color channel is written.
func (s *HostState) ColorWriteEnabled() bool {
	return s.ColorWriteMask != gputypes.ColorWriteMaskNone
}

// Mirror tracks the desired and the applied host state.
//
// Besides the device slots it records the register-derived switches that
// the fragment shader consumes instead of the device.
type Mirror struct {
	Cur HostState

	// EmulateMinMaxBlend is set when min/max blending runs in the shader.
	EmulateMinMaxBlend bool
	// LogicOp is the active logic op; it applies only with blending off.
	LogicOp regs.LogicOp
	// ClipEnable enables the user clip plane.
	ClipEnable bool
	// FlipY is set when the vertex shader mirrors Y so that guest row 0
	// lands on host row 0. Mirroring reverses the winding order.
	FlipY bool

	caps    gpucore.Capabilities
	applied HostState
	// primed is false until the fixed-function slots were pushed once.
	primed bool
	// unbound is set when the device binding slots are in an unknown state.
	// Devices start with every binding slot at its zero value.
	unbound bool
}

// NewMirror returns a mirror for a device with the given capabilities.
func NewMirror(caps gpucore.Capabilities) *Mirror {
	return &Mirror{caps: caps}
}

// Applied returns the last state pushed to the device.
func (m *Mirror) Applied() HostState { return m.applied }

// Invalidate forces the next Apply to push every slot.
func (m *Mirror) Invalidate() {
	m.primed = false
	m.unbound = true
}

// SyncAll runs every register-derived Sync function.
func (m *Mirror) SyncAll(r *regs.Block) {
	m.SyncClipEnabled(r)
	m.SyncCullMode(r)
	m.SyncBlendEnabled(r)
	m.SyncBlendFuncs(r)
	m.SyncBlendColor(r)
	m.SyncLogicOp(r)
	m.SyncColorWriteMask(r)
	m.SyncStencilTest(r)
	m.SyncDepthTest(r)
	m.SyncStencilWriteMask(r)
	m.SyncDepthWriteMask(r)
}

// SyncClipEnabled reads the user clip plane enable.
func (m *Mirror) SyncClipEnabled(r *regs.Block) {
	m.ClipEnable = r.Rasterizer.ClipEnable
}

// SyncCullMode derives culling. With FlipY set front faces are culled.
func (m *Mirror) SyncCullMode(r *regs.Block) {
	rs := gpucore.RasterState{CullMode: gputypes.CullModeNone, FrontFace: gputypes.FrontFaceCCW}
	if r.Rasterizer.CullMode != regs.CullKeepAll {
		if r.Rasterizer.CullMode == regs.CullKeepClockWise {
			rs.FrontFace = gputypes.FrontFaceCW
		}
		rs.CullMode = gputypes.CullModeBack
		if m.FlipY {
			rs.CullMode = gputypes.CullModeFront
		}
	}
	m.Cur.Raster = rs
}

// SyncBlendEnabled reads the alpha blend enable.
func (m *Mirror) SyncBlendEnabled(r *regs.Block) {
	m.Cur.Blend.Enabled = r.Framebuffer.OutputMerger.AlphaBlendEnable
}

// needsEmulation reports whether a min/max component cannot be expressed
// on a host whose min/max blend ignores factors.
func needsEmulation(c gputypes.BlendComponent) bool {
	minmax := c.Operation == gputypes.BlendOperationMin || c.Operation == gputypes.BlendOperationMax
	return minmax && (c.SrcFactor != gputypes.BlendFactorOne || c.DstFactor != gputypes.BlendFactorOne)
}

var passThrough = gputypes.BlendComponent{
	SrcFactor: gputypes.BlendFactorOne,
	DstFactor: gputypes.BlendFactorZero,
	Operation: gputypes.BlendOperationAdd,
}

// SyncBlendFuncs translates equations and factors. Without hardware
// min/max factor support the affected components pass the fragment color
// through and EmulateMinMaxBlend is set for the fragment shader.
func (m *Mirror) SyncBlendFuncs(r *regs.Block) {
	om := &r.Framebuffer.OutputMerger
	bs := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: BlendFactor(om.ColorSrc),
			DstFactor: BlendFactor(om.ColorDst),
			Operation: BlendOperation(om.ColorEquation),
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: BlendFactor(om.AlphaSrc),
			DstFactor: BlendFactor(om.AlphaDst),
			Operation: BlendOperation(om.AlphaEquation),
		},
	}
	m.EmulateMinMaxBlend = false
	if !m.caps.BlendMinMaxFactor {
		if needsEmulation(bs.Color) {
			m.EmulateMinMaxBlend = true
			bs.Color = passThrough
		}
		if needsEmulation(bs.Alpha) {
			m.EmulateMinMaxBlend = true
			bs.Alpha = passThrough
		}
	}
	if !m.Cur.Blend.Enabled {
		m.EmulateMinMaxBlend = false
	}
	m.Cur.Blend.State = bs
}

func usesConstant(f regs.BlendFactor) (color, alpha bool) {
	switch f {
	case regs.FactorConstantColor, regs.FactorOneMinusConstantColor:
		return true, false
	case regs.FactorConstantAlpha, regs.FactorOneMinusConstantAlpha:
		return false, true
	}
	return false, false
}

// SyncBlendColor converts the blend constant. When the RGB factors only
// reference the constant alpha, its alpha is splatted across RGB.
func (m *Mirror) SyncBlendColor(r *regs.Block) {
	om := &r.Framebuffer.OutputMerger
	c := ColorRGBA8(om.BlendConst)
	var usesColor, usesAlpha bool
	for _, f := range [2]regs.BlendFactor{om.ColorSrc, om.ColorDst} {
		uc, ua := usesConstant(f)
		usesColor = usesColor || uc
		usesAlpha = usesAlpha || ua
	}
	if usesAlpha && !usesColor {
		c.R, c.G, c.B = c.A, c.A, c.A
	}
	m.Cur.BlendConstant = c
}

// SyncLogicOp records the logic op used by the fragment shader.
func (m *Mirror) SyncLogicOp(r *regs.Block) {
	m.LogicOp = r.Framebuffer.OutputMerger.LogicOp
}

// ColorSuppressed reports whether the logic op discards every color write.
func ColorSuppressed(r *regs.Block) bool {
	om := &r.Framebuffer.OutputMerger
	return !om.AlphaBlendEnable && om.LogicOp == regs.LogicNoOp
}

// SyncColorWriteMask derives the channel mask. A NoOp logic op with
// blending disabled masks every channel so depth and stencil still update.
func (m *Mirror) SyncColorWriteMask(r *regs.Block) {
	if ColorSuppressed(r) {
		m.Cur.ColorWriteMask = gputypes.ColorWriteMaskNone
		return
	}
	om := &r.Framebuffer.OutputMerger
	allow := r.Framebuffer.AllowColorWrite
	var mask gputypes.ColorWriteMask
	if allow && om.RedEnable {
		mask |= gputypes.ColorWriteMaskRed
	}
	if allow && om.GreenEnable {
		mask |= gputypes.ColorWriteMaskGreen
	}
	if allow && om.BlueEnable {
		mask |= gputypes.ColorWriteMaskBlue
	}
	if allow && om.AlphaEnable {
		mask |= gputypes.ColorWriteMaskAlpha
	}
	m.Cur.ColorWriteMask = mask
}

// SyncStencilTest derives the stencil test. Only D24S8 targets have stencil.
func (m *Mirror) SyncStencilTest(r *regs.Block) {
	om := &r.Framebuffer.OutputMerger
	ds := &m.Cur.DepthStencil
	ds.StencilTestEnable = om.StencilEnable && r.Framebuffer.DepthFormat == regs.DepthD24S8
	ds.StencilCompare = CompareFunction(om.StencilFunc)
	ds.StencilReadMask = om.StencilInputMask
	ds.StencilFailOp = StencilOperation(om.StencilFail)
	ds.StencilDepthFail = StencilOperation(om.StencilZFail)
	ds.StencilPassOp = StencilOperation(om.StencilZPass)
	m.Cur.StencilRef = uint32(om.StencilRef)
}

// SyncDepthTest derives the depth test. Depth writes need the test
// enabled on the host, so a write-only configuration compares Always.
func (m *Mirror) SyncDepthTest(r *regs.Block) {
	om := &r.Framebuffer.OutputMerger
	ds := &m.Cur.DepthStencil
	ds.DepthTestEnable = om.DepthTestEnable || om.DepthWriteEnable
	ds.DepthCompare = gputypes.CompareFunctionAlways
	if om.DepthTestEnable {
		ds.DepthCompare = CompareFunction(om.DepthFunc)
	}
}

// SyncStencilWriteMask derives the stencil write mask.
func (m *Mirror) SyncStencilWriteMask(r *regs.Block) {
	m.Cur.DepthStencil.StencilWriteMask = 0
	if r.Framebuffer.AllowDepthStencilWrite {
		m.Cur.DepthStencil.StencilWriteMask = r.Framebuffer.OutputMerger.StencilWriteMask
	}
}

// SyncDepthWriteMask derives the depth write enable.
func (m *Mirror) SyncDepthWriteMask(r *regs.Block) {
	m.Cur.DepthStencil.DepthWriteEnable = r.Framebuffer.AllowDepthStencilWrite &&
		r.Framebuffer.OutputMerger.DepthWriteEnable
}

// Apply pushes every slot of Cur that differs from the applied snapshot
// and returns the number of device calls issued.
func (m *Mirror) Apply(dev gpucore.Device) int {
	cur, old := &m.Cur, &m.applied
	all := !m.primed
	n := 0
	if all || cur.Blend != old.Blend {
		dev.SetBlendState(cur.Blend)
		n++
	}
	if all || cur.BlendConstant != old.BlendConstant {
		dev.SetBlendConstant(cur.BlendConstant)
		n++
	}
	if all || cur.ColorWriteMask != old.ColorWriteMask {
		dev.SetColorWriteMask(cur.ColorWriteMask)
		n++
	}
	if all || cur.DepthStencil != old.DepthStencil {
		dev.SetDepthStencilState(cur.DepthStencil)
		n++
	}
	if all || cur.StencilRef != old.StencilRef {
		dev.SetStencilReference(cur.StencilRef)
		n++
	}
	if all || cur.Raster != old.Raster {
		dev.SetRasterState(cur.Raster)
		n++
	}
	if all || cur.Viewport != old.Viewport {
		dev.SetViewport(cur.Viewport)
		n++
	}
	if all || cur.Scissor != old.Scissor {
		dev.SetScissor(cur.Scissor)
		n++
	}
	all = m.unbound
	if all || cur.Targets != old.Targets {
		dev.SetRenderTargets(cur.Targets)
		n++
	}
	for i := range cur.Textures {
		if all || cur.Textures[i] != old.Textures[i] {
			dev.BindTexture(gpucore.TextureUnit(i), cur.Textures[i])
			n++
		}
	}
	for i := range cur.Images {
		if all || cur.Images[i] != old.Images[i] {
			dev.BindImage(gpucore.ImageSlot(i), cur.Images[i])
			n++
		}
	}
	for i := range cur.Buffers {
		if all || cur.Buffers[i] != old.Buffers[i] {
			dev.BindBuffer(gpucore.BufferSlot(i), cur.Buffers[i])
			n++
		}
	}
	if all || cur.VertexBuffer != old.VertexBuffer {
		dev.SetVertexBuffer(cur.VertexBuffer)
		n++
	}
	if all || cur.IndexBuffer != old.IndexBuffer {
		dev.SetIndexBuffer(cur.IndexBuffer)
		n++
	}
	if all || cur.Programs != old.Programs {
		dev.UsePrograms(cur.Programs)
		n++
	}
	m.applied = *cur
	m.primed = true
	m.unbound = false
	return n
}
