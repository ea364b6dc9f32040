package pica

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/memory"
	"github.com/gogpu/pica/regs"
)

// identity swizzle: all components written, every source reads xyzw.
const identitySwizzle = 0xf |
	1<<9 | 2<<7 | 3<<5 |
	1<<18 | 2<<16 | 3<<14 |
	1<<27 | 2<<25 | 3<<23

func vsInstr(op, dest, src1 uint32) uint32 { return op<<26 | dest<<21 | src1<<12 }

// setupProgram installs "mov o0, v0; mov o1, v1; end" with position and
// color outputs and one loader streaming two float4 attributes.
func (rig *testRig) setupProgram() {
	const opMOV, opEND = 0x13, 0x22
	st := rig.st
	st.VS.ProgramCode[0] = vsInstr(opMOV, 0, 0)
	st.VS.ProgramCode[1] = vsInstr(opMOV, 1, 1)
	st.VS.ProgramCode[2] = vsInstr(opEND, 0, 0)
	st.VS.SwizzleData[0] = identitySwizzle
	st.Dirty.VSUniforms = true

	r := &st.Regs
	r.VS.OutputMask = 0b11
	r.VS.InputRegisterMap[0], r.VS.InputRegisterMap[1] = 0, 1
	r.Rasterizer.VSOutputTotal = 2
	r.Rasterizer.VSOutputAttributes[0] = [4]regs.Semantic{regs.SemPositionX, regs.SemPositionY, regs.SemPositionZ, regs.SemPositionW}
	r.Rasterizer.VSOutputAttributes[1] = [4]regs.Semantic{regs.SemColorR, regs.SemColorG, regs.SemColorB, regs.SemColorA}

	va := &r.Pipeline.VertexAttributes
	va.BaseAddress = dataAddr
	va.NumAttributes = 2
	va.Formats[0] = regs.AttributeFormat{Type: regs.AttribFloat, Size: 4}
	va.Formats[1] = regs.AttributeFormat{Type: regs.AttribFloat, Size: 4}
	va.Loaders[0] = regs.AttributeLoader{ByteCount: 32, ComponentCount: 2, Components: [12]uint8{0, 1}}
}

// writeVertices stores n float4 position/color pairs at the attribute base.
func (rig *testRig) writeVertices(n int) {
	buf := make([]byte, n*32)
	for v := 0; v < n; v++ {
		for k := 0; k < 8; k++ {
			binary.LittleEndian.PutUint32(buf[v*32+k*4:], math.Float32bits(float32(v*8+k)))
		}
	}
	memory.Write(rig.mem, dataAddr, buf)
}

func TestAccelerateDrawBatch(t *testing.T) {
	tests := []struct {
		name      string
		topology  regs.TriangleTopology
		indexed   bool
		indices   []byte
		wide      bool
		vertices  uint32
		wantCount uint32
		wantIdx   bool
		wantBase  int32
		wantTopo  gputypes.PrimitiveTopology
	}{
		{"list", regs.TopologyList, false, nil, false, 3, 3, false, 0, gputypes.PrimitiveTopologyTriangleList},
		{"strip", regs.TopologyStrip, false, nil, false, 4, 4, false, 0, gputypes.PrimitiveTopologyTriangleStrip},
		{"fan becomes list", regs.TopologyFan, false, nil, false, 5, 9, true, 0, gputypes.PrimitiveTopologyTriangleList},
		{"u8 indices", regs.TopologyList, true, []byte{5, 7, 6}, false, 3, 3, true, -5, gputypes.PrimitiveTopologyTriangleList},
		{"u16 indices", regs.TopologyList, true, []byte{2, 0, 9, 0, 4, 0}, true, 3, 3, true, -2, gputypes.PrimitiveTopologyTriangleList},
		{"indexed fan", regs.TopologyFan, true, []byte{3, 4, 5, 6}, false, 4, 6, true, -3, gputypes.PrimitiveTopologyTriangleList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t)
			rig.setupProgram()
			rig.writeVertices(16)
			p := &rig.st.Regs.Pipeline
			p.Topology = tt.topology
			p.NumVertices = tt.vertices
			if tt.indexed {
				p.IndexOffset = 0x1000
				p.IndexFormat16 = tt.wide
				memory.Write(rig.mem, dataAddr+p.IndexOffset, tt.indices)
			}

			if !rig.r.AccelerateDrawBatch(tt.indexed) {
				t.Fatal("AccelerateDrawBatch refused")
			}
			if len(rig.rec.Draws) != 1 {
				t.Fatalf("draws = %d, want 1", len(rig.rec.Draws))
			}
			d := rig.rec.Draws[0]
			if d.Count != tt.wantCount || d.Indexed != tt.wantIdx || d.BaseVertex != tt.wantBase || d.Topology != tt.wantTopo {
				t.Errorf("draw = %+v, want count %d indexed %v base %d topology %v",
					d, tt.wantCount, tt.wantIdx, tt.wantBase, tt.wantTopo)
			}
			if n := len(rig.rec.TextureBinds); n != 0 {
				t.Errorf("texture binds = %d, want 0 with every unit disabled", n)
			}
			if d.Programs.Vertex == 0 || d.Programs.Fragment == 0 {
				t.Errorf("programs = %+v, want vertex and fragment", d.Programs)
			}
			if s := rig.r.Stats(); s.AcceleratedDraws != 1 || s.Fallbacks != 0 {
				t.Errorf("stats = %+v", s)
			}
		})
	}
}

func TestAccelerateDrawBatchRefusals(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*regs.State)
	}{
		{"geometry program", func(st *regs.State) {
			st.Regs.Pipeline.UseGS = regs.GSYes
			st.Regs.Pipeline.GSMode = regs.GSPoint
			st.Regs.Pipeline.Topology = regs.TopologyShader
		}},
		{"variable primitive", func(st *regs.State) {
			st.Regs.Pipeline.UseGS = regs.GSYes
			st.Regs.Pipeline.GSMode = regs.GSVariablePrimitive
		}},
		{"untranslatable program", func(st *regs.State) {
			st.VS.ProgramCode[0] = 0x24 << 26
		}},
		{"unmapped vertices", func(st *regs.State) {
			st.Regs.Pipeline.VertexAttributes.BaseAddress = 0x1000
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t)
			rig.setupProgram()
			rig.writeVertices(3)
			rig.st.Regs.Pipeline.NumVertices = 3
			tt.setup(rig.st)
			if rig.r.AccelerateDrawBatch(false) {
				t.Fatal("AccelerateDrawBatch accepted")
			}
			if len(rig.rec.Draws) != 0 {
				t.Errorf("draws = %d, want 0", len(rig.rec.Draws))
			}
			if rig.r.Stats().Fallbacks != 1 {
				t.Errorf("Fallbacks = %d, want 1", rig.r.Stats().Fallbacks)
			}
		})
	}
}

func TestSetupVertexArrayDecoding(t *testing.T) {
	rig := newTestRig(t)
	p := &rig.st.Regs.Pipeline
	va := &p.VertexAttributes
	va.BaseAddress = dataAddr
	va.NumAttributes = 3
	va.Formats[0] = regs.AttributeFormat{Type: regs.AttribUByte, Size: 3}
	va.Formats[1] = regs.AttributeFormat{Type: regs.AttribShort, Size: 2}
	// ubyte x3, align to 2, short x2, 4 bytes padding: 3+1+4+4 = 12 bytes.
	va.Loaders[0] = regs.AttributeLoader{ByteCount: 12, ComponentCount: 3, Components: [12]uint8{0, 1, 12}}
	p.DefaultAttributes[2] = [4]float32{7, 8, 9, 10}
	p.NumVertices = 1
	memory.Write(rig.mem, dataAddr, []byte{1, 2, 3, 0xff, 0xfe, 0xff, 5, 0, 0xaa, 0xaa, 0xaa, 0xaa})

	info, ok := rig.r.AnalyzeVertexArray(false)
	if !ok {
		t.Fatal("AnalyzeVertexArray failed")
	}
	if info.HostSize != 48 || info.GuestSize != 12 {
		t.Fatalf("info = %+v, want host 48 guest 12", info)
	}
	dst := make([]byte, info.HostSize)
	layout, ok := rig.r.SetupVertexArray(dst, info)
	if !ok {
		t.Fatal("SetupVertexArray failed")
	}
	if layout.Stride != 48 || layout.Mask != 0b111 {
		t.Errorf("layout stride %d mask %b, want 48 and 111", layout.Stride, layout.Mask)
	}
	want := [3][4]float32{{1, 2, 3, 1}, {-2, 5, 0, 1}, {7, 8, 9, 10}}
	for a, w := range want {
		var got [4]float32
		for k := range got {
			got[k] = math.Float32frombits(binary.LittleEndian.Uint32(dst[a*16+k*4:]))
		}
		if got != w {
			t.Errorf("attribute %d = %v, want %v", a, got, w)
		}
	}
}

func TestFanToList(t *testing.T) {
	tests := []struct {
		in   []uint16
		want []uint16
	}{
		{nil, nil},
		{[]uint16{0, 1}, nil},
		{[]uint16{0, 1, 2}, []uint16{0, 1, 2}},
		{[]uint16{4, 5, 6, 7}, []uint16{4, 5, 6, 4, 6, 7}},
	}
	for _, tt := range tests {
		got := fanToList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("fanToList(%v) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("fanToList(%v) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestPicaUniformsFollowAcceleratedDraws(t *testing.T) {
	rig := newTestRig(t)
	rig.setupProgram()
	rig.writeVertices(3)
	rig.st.Regs.Pipeline.NumVertices = 3

	rig.triangle()
	if !rig.st.Dirty.VSUniforms {
		t.Error("software draw consumed the guest uniforms")
	}
	if !rig.r.AccelerateDrawBatch(false) {
		t.Fatal("AccelerateDrawBatch refused")
	}
	if rig.st.Dirty.VSUniforms {
		t.Error("accelerated draw left the guest uniforms dirty")
	}
	before := rig.r.Stats().UniformBytes
	if !rig.r.AccelerateDrawBatch(false) {
		t.Fatal("AccelerateDrawBatch refused")
	}
	if after := rig.r.Stats().UniformBytes; after != before {
		t.Errorf("unchanged draw uploaded %d uniform bytes", after-before)
	}
}
