package regs

// Vertex shader program memory sizes, in 32-bit words.
const (
	ShaderProgramSize = 4096
	ShaderSwizzleSize = 4096
	NumFloatUniforms  = 96
	NumBoolUniforms   = 16
	NumIntUniforms    = 4
)

// VSSetup is the vertex shader program memory and uniform file.
type VSSetup struct {
	ProgramCode [ShaderProgramSize]uint32
	SwizzleData [ShaderSwizzleSize]uint32
	Float       [NumFloatUniforms][4]float32
}

// Dirty collects the per-category dirty flags consumed by the rasterizer.
type Dirty struct {
	// LightingLUT has bit i set when lighting sampler i changed.
	LightingLUT     uint32
	FogLUT          bool
	ProcTexNoise    bool
	ProcTexColorMap bool
	ProcTexAlphaMap bool
	ProcTexLUT      bool
	ProcTexDiffLUT  bool
	VSUniforms      bool
}

// MarkAllLUTs flags every lookup table for re-upload.
func (d *Dirty) MarkAllLUTs() {
	d.LightingLUT = 1<<NumLightingSamplers - 1
	d.FogLUT = true
	d.ProcTexNoise = true
	d.ProcTexColorMap = true
	d.ProcTexAlphaMap = true
	d.ProcTexLUT = true
	d.ProcTexDiffLUT = true
}

// State is everything the rasterizer reads from the register emulation.
type State struct {
	Regs  Block
	VS    VSSetup
	LUT   LUTs
	Dirty Dirty
}

// NewState returns a state with all tables marked dirty and textures disabled.
func NewState() *State {
	s := &State{}
	s.Dirty.MarkAllLUTs()
	s.Dirty.VSUniforms = true
	for i := range s.Regs.Texturing.Units {
		s.Regs.Texturing.Units[i].Config.Type = Texture2D
	}
	s.Regs.Pipeline.Topology = TopologyList
	s.Regs.Lighting.D0Scale, s.Regs.Lighting.D1Scale = 1, 1
	s.Regs.Framebuffer.AllowColorWrite = true
	s.Regs.Framebuffer.AllowDepthStencilWrite = true
	om := &s.Regs.Framebuffer.OutputMerger
	om.RedEnable, om.GreenEnable, om.BlueEnable, om.AlphaEnable = true, true, true, true
	om.ColorSrc, om.AlphaSrc = FactorOne, FactorOne
	om.ColorDst, om.AlphaDst = FactorZero, FactorZero
	om.LogicOp = LogicCopy
	for i := range s.Regs.Texturing.TevStages {
		st := &s.Regs.Texturing.TevStages[i]
		st.ColorSource = [3]TevSource{SrcPrevious, SrcPrevious, SrcPrevious}
		st.AlphaSource = [3]TevSource{SrcPrevious, SrcPrevious, SrcPrevious}
	}
	s.Regs.Texturing.TevStages[0].ColorSource[0] = SrcPrimaryColor
	s.Regs.Texturing.TevStages[0].AlphaSource[0] = SrcPrimaryColor
	return s
}

// SetLightingLUT replaces lighting sampler i and marks it dirty.
func (s *State) SetLightingLUT(i int, table *[LightingLUTSize]LightingLUTEntry) {
	s.LUT.Lighting[i] = *table
	s.Dirty.LightingLUT |= 1 << uint(i)
}

// SetFogLUT replaces the fog table and marks it dirty.
func (s *State) SetFogLUT(table *[FogLUTSize]FogLUTEntry) {
	s.LUT.Fog = *table
	s.Dirty.FogLUT = true
}

// SetFloatUniform writes vertex shader float uniform i and marks uniforms dirty.
func (s *State) SetFloatUniform(i int, v [4]float32) {
	s.VS.Float[i] = v
	s.Dirty.VSUniforms = true
}
