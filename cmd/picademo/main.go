// Command picademo drives the pica rasterizer with a few synthetic frames
// and prints what the host device did.
//
// Without -gpu it runs on the wgpu noop backend, so it works on machines
// without a GPU.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/pica"
	"github.com/gogpu/pica/backend/native"
	"github.com/gogpu/pica/memory"
	"github.com/gogpu/pica/regs"
)

const (
	colorAddr  = memory.VRAMBase
	depthAddr  = memory.VRAMBase + 0x100000
	screenAddr = memory.VRAMBase + 0x200000
	dataAddr   = memory.FCRAMBase

	// identitySwizzle writes xyzw and reads every source unswizzled.
	identitySwizzle = 0xf |
		1<<9 | 2<<7 | 3<<5 |
		1<<18 | 2<<16 | 3<<14 |
		1<<27 | 2<<25 | 3<<23

	opMOV = 0x13
	opEND = 0x22
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		useGPU     = flag.Bool("gpu", false, "render on the Vulkan adapter instead of the noop backend")
		frames     = flag.Int("frames", 60, "frames to draw")
		size       = flag.Uint("size", 240, "framebuffer width and height")
		titleID    = flag.Uint64("title", 0x0004000000030000, "program id used for the shader cache")
		verbose    = flag.Bool("v", false, "enable debug logging")
		lang       = flag.String("lang", "en", "language for number formatting")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	pica.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := pica.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = pica.LoadConfig(*configPath); err != nil {
			log.Fatalf("picademo: %v", err)
		}
	}
	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("picademo: %v", err)
	}
	opts = append(opts, pica.WithProgramID(*titleID))

	dev, cleanup, err := openDevice(*useGPU)
	if err != nil {
		log.Fatalf("picademo: %v", err)
	}
	defer cleanup()

	w := uint32(*size)
	mem := memory.NewDefault(16 << 20)
	st := regs.NewState()
	setupFramebuffer(st, w)
	setupProgram(st)
	writeVertices(mem)

	r, err := pica.New(mem, dev, st, opts...)
	if err != nil {
		log.Fatalf("picademo: %v", err)
	}
	defer r.Destroy()

	if cfg.DiskCache {
		var cancel atomic.Bool
		err := r.LoadDefaultDiskResources(&cancel, func(stage pica.LoadStage, done, total int) {
			pica.Logger().Debug("shader cache", "stage", stage, "done", done, "total", total)
		})
		if err != nil {
			pica.Logger().Warn("shader cache not loaded", "err", err)
		}
	}

	var info pica.ScreenInfo
	displayed := 0
	for f := 0; f < *frames; f++ {
		if !r.AccelerateFill(regs.MemoryFillConfig{
			StartAddr: colorAddr, EndAddr: colorAddr + w*w*4, Value32: 0xFF202020, Fill32Bit: true,
		}) {
			pica.Logger().Debug("fill not accelerated", "frame", f)
		}
		if !r.AccelerateDrawBatch(false) {
			r.AddTriangle(vertex(-1, -1, 1, 0, 0), vertex(1, -1, 0, 1, 0), vertex(0, 1, 0, 0, 1))
			r.DrawTriangles()
		}
		r.AddTriangle(vertex(-0.5, -0.5, 1, 1, 0), vertex(0.5, -0.5, 0, 1, 1), vertex(0, 0.5, 1, 0, 1))
		r.DrawTriangles()

		r.AccelerateDisplayTransfer(regs.DisplayTransferConfig{
			InputAddr: colorAddr, OutputAddr: screenAddr,
			InputWidth: w, InputHeight: w, OutputWidth: w, OutputHeight: w,
			InputFormat: regs.GPUPixelRGBA8, OutputFormat: regs.GPUPixelRGBA8,
		})
		fb := regs.FramebufferConfig{Width: w, Height: w, Format: regs.GPUPixelRGBA8}
		if r.AccelerateDisplay(fb, screenAddr, w, &info) {
			displayed++
		}
	}
	r.FlushAll()
	if err := dev.Flush(); err != nil {
		log.Fatalf("picademo: %v", err)
	}

	report(r.Stats(), displayed, *lang)
}

func openDevice(gpu bool) (*native.Device, func(), error) {
	if gpu {
		d, err := native.Open()
		if err != nil {
			return nil, nil, err
		}
		return d, d.Destroy, nil
	}
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, native.ErrNoGPU
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, fmt.Errorf("noop device: %w", err)
	}
	d, err := native.New(openDev.Device, openDev.Queue, nil)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, nil, err
	}
	return d, func() {
		d.Destroy()
		openDev.Device.Destroy()
		instance.Destroy()
	}, nil
}

func setupFramebuffer(st *regs.State, size uint32) {
	fb := &st.Regs.Framebuffer
	fb.ColorAddr, fb.DepthAddr = colorAddr, depthAddr
	fb.Width, fb.Height = size, size
	fb.ColorFormat, fb.DepthFormat = regs.ColorRGBA8, regs.DepthD24S8
	fb.AllowColorWrite = true
	om := &fb.OutputMerger
	om.RedEnable, om.GreenEnable, om.BlueEnable, om.AlphaEnable = true, true, true, true
	om.LogicOp = regs.LogicCopy
	ras := &st.Regs.Rasterizer
	ras.ViewportSizeX, ras.ViewportSizeY = float32(size)/2, float32(size)/2
}

// setupProgram installs "mov o0, v0; mov o1, v1; end" fed by one loader
// of float4 position and color pairs.
func setupProgram(st *regs.State) {
	instr := func(op, dest, src uint32) uint32 { return op<<26 | dest<<21 | src<<12 }
	st.VS.ProgramCode[0] = instr(opMOV, 0, 0)
	st.VS.ProgramCode[1] = instr(opMOV, 1, 1)
	st.VS.ProgramCode[2] = instr(opEND, 0, 0)
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
	r.Pipeline.Topology = regs.TopologyList
	r.Pipeline.NumVertices = 3
}

func writeVertices(mem *memory.Flat) {
	verts := [3][8]float32{
		{-0.8, -0.8, 0, 1, 1, 0, 0, 1},
		{0.8, -0.8, 0, 1, 0, 1, 0, 1},
		{0, 0.8, 0, 1, 0, 0, 1, 1},
	}
	buf := make([]byte, 0, len(verts)*32)
	for _, v := range verts {
		for _, c := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
		}
	}
	memory.Write(mem, dataAddr, buf)
}

func vertex(x, y, red, green, blue float32) pica.HardwareVertex {
	return pica.HardwareVertex{
		Position: [4]float32{x, y, 0, 1},
		Quat:     [4]float32{0, 0, 0, 1},
		Color:    [4]float32{red, green, blue, 1},
	}
}

func report(s pica.Stats, displayed int, lang string) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	p.Printf("draws:             %d (%d accelerated, %d software, %d fallbacks)\n",
		s.Draws, s.AcceleratedDraws, s.SoftwareDraws, s.Fallbacks)
	p.Printf("frames displayed:  %d\n", displayed)
	p.Printf("uploaded:          %d vertex, %d index, %d uniform, %d LUT bytes\n",
		s.VertexBytes, s.IndexBytes, s.UniformBytes, s.LUTBytes)
	p.Printf("ring wraps:        %d\n", s.RingWraps)
	p.Printf("cache:             %+v\n", s.Cache)
	p.Printf("shaders:           %+v\n", s.Shaders)
}
