package rescache

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/gputest"
	"github.com/gogpu/pica/internal/texcodec"
	"github.com/gogpu/pica/memory"
	"github.com/gogpu/pica/regs"
)

const (
	addrA = memory.VRAMBase
	addrB = memory.VRAMBase + 0x1000
)

func newTestCache(t *testing.T, scale uint32) (*Cache, *gputest.Recorder, *memory.Flat) {
	t.Helper()
	dev := gputest.NewRecorder()
	mem := memory.NewDefault(0)
	c := New(dev, mem, Config{Scale: scale})
	t.Cleanup(c.Destroy)
	return c, dev, mem
}

func colorParams(addr, w, h uint32) SurfaceParams {
	return SurfaceParams{Addr: addr, Width: w, Height: h, Format: texcodec.RGBA8, Tiled: true, Scale: 1}
}

func fillPattern(mem memory.Memory, addr, size uint32, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)*3 + seed
	}
	memory.Write(mem, addr, data)
	return data
}

func TestGetSurfaceReusesExactMatch(t *testing.T) {
	c, dev, mem := newTestCache(t, 1)
	fillPattern(mem, addrA, 16*16*4, 1)

	s1 := c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)
	if s1 == nil {
		t.Fatal("GetSurface returned nil")
	}
	writes := dev.Counts().TextureWrites
	s2 := c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)
	if s1 != s2 {
		t.Error("second lookup created a new surface")
	}
	if got := dev.Counts().TextureWrites; got != writes {
		t.Errorf("valid surface uploaded again: %d writes, want %d", got, writes)
	}
}

func TestGetSurfaceSubRect(t *testing.T) {
	c, _, mem := newTestCache(t, 2)
	fillPattern(mem, addrA, 16*32*4, 1)
	parent := c.GetSurface(SurfaceParams{Addr: addrA, Width: 16, Height: 32, Format: texcodec.RGBA8, Tiled: true, Scale: 2}, ScaleExact, true)

	band := texcodec.RGBA8.GuestSize(16, 8)
	sub := SurfaceParams{Addr: addrA + 2*band, Width: 16, Height: 8, Format: texcodec.RGBA8, Tiled: true, Scale: 1}
	s, rect := c.GetSurfaceSubRect(sub, ScaleIgnore, true)
	if s != parent {
		t.Fatal("sub-rect lookup did not return the containing surface")
	}
	if want := gpucore.RectWH(0, 16, 16, 8).Scale(2); rect != want {
		t.Errorf("rect = %+v, want %+v", rect, want)
	}
}

func TestFlushRoundTrip(t *testing.T) {
	for _, scale := range []uint32{1, 3} {
		for _, format := range []texcodec.PixelFormat{texcodec.RGBA8, texcodec.RGB565, texcodec.D24S8} {
			t.Run(fmt.Sprintf("%s/x%d", format, scale), func(t *testing.T) {
				c, _, mem := newTestCache(t, scale)
				size := format.GuestSize(16, 16)
				want := fillPattern(mem, addrA, size, 7)
				p := SurfaceParams{Addr: addrA, Width: 16, Height: 16, Format: format, Tiled: true, Scale: scale}
				s := c.GetSurface(p, ScaleExact, true)
				if s == nil {
					t.Fatal("GetSurface returned nil")
				}
				c.InvalidateRegion(addrA, size, s)
				memory.Write(mem, addrA, make([]byte, size))

				c.FlushRegion(addrA, size, nil)
				if got := memory.Read(mem, addrA, size); !bytes.Equal(got, want) {
					t.Error("flushed bytes differ from the uploaded ones")
				}
				if len(s.Dirty()) != 0 {
					t.Errorf("dirty after flush: %v", s.Dirty())
				}
			})
		}
	}
}

func TestFlushWritesOnlyRequestedBytes(t *testing.T) {
	c, _, mem := newTestCache(t, 1)
	size := texcodec.RGBA8.GuestSize(16, 16)
	fillPattern(mem, addrA, size, 0)
	s := c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)
	c.InvalidateRegion(addrA, size, s)
	memory.Write(mem, addrA, make([]byte, size))

	c.FlushRegion(addrA+10, 4, nil)
	got := memory.Read(mem, addrA, size)
	for i, b := range got {
		inside := i >= 10 && i < 14
		if !inside && b != 0 {
			t.Fatalf("byte %d outside the flushed range changed to %#x", i, b)
		}
	}
	if len(s.Dirty()) != 2 {
		t.Errorf("dirty spans = %v, want the two remainders", s.Dirty())
	}
}

func TestDisjointInvalidateChangesNothing(t *testing.T) {
	c, dev, mem := newTestCache(t, 1)
	size := texcodec.RGBA8.GuestSize(16, 16)
	fillPattern(mem, addrA, size, 0)
	s := c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)
	c.InvalidateRegion(addrA, 64, s)
	before := dev.Counts()
	gen := s.Generation()

	c.InvalidateRegion(addrB, 0x100, nil)

	if dev.Counts() != before {
		t.Errorf("device calls changed: %+v -> %+v", before, dev.Counts())
	}
	if !s.Registered() || s.Generation() != gen || !s.IsRegionValid(s.Span()) {
		t.Error("surface changed by a disjoint invalidate")
	}
	if len(s.Dirty()) != 1 {
		t.Errorf("dirty = %v, want untouched", s.Dirty())
	}
	if got := len(c.Surfaces()); got != 1 {
		t.Errorf("surfaces = %d, want 1", got)
	}
}

func TestInvalidateUnregistersFullyInvalid(t *testing.T) {
	c, _, mem := newTestCache(t, 1)
	size := texcodec.RGBA8.GuestSize(16, 16)
	fillPattern(mem, addrA, size, 0)
	s := c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)

	c.InvalidateRegion(addrA, size/2, nil)
	if !s.Registered() || s.IsFullyInvalid() {
		t.Fatal("partially invalid surface was dropped")
	}
	c.InvalidateRegion(addrA+size/2, size/2, nil)
	if s.Registered() {
		t.Error("fully invalid surface still registered")
	}
}

func TestFlushInvalidateOrderIndependent(t *testing.T) {
	type op func(c *Cache)
	size := texcodec.RGBA8.GuestSize(16, 16)
	flushA := func(c *Cache) { c.FlushRegion(addrA, size, nil) }
	invalidateB := func(c *Cache) { c.InvalidateRegion(addrB, size, nil) }
	flushB := func(c *Cache) { c.FlushRegion(addrB, size, nil) }
	invalidateAHalf := func(c *Cache) { c.InvalidateRegion(addrA+size/2, size/2, nil) }

	run := func(t *testing.T, ops []op) ([]byte, int) {
		c, _, mem := newTestCache(t, 2)
		fillPattern(mem, addrA, 2*0x1000, 5)
		c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)
		c.GetSurface(colorParams(addrB, 16, 16), ScaleExact, true)
		if !c.AccelerateFill(regs.MemoryFillConfig{StartAddr: addrA, EndAddr: addrA + size/2, Value32: 0xdeadbeef, Fill32Bit: true}) {
			t.Fatal("fill not accelerated")
		}
		for _, o := range ops {
			o(c)
		}
		c.FlushAll()
		return memory.Read(mem, addrA, 2*0x1000), len(c.Surfaces())
	}

	tests := []struct {
		name string
		a, b []op
	}{
		{"flush A / invalidate B", []op{flushA, invalidateB}, []op{invalidateB, flushA}},
		{"flush B / invalidate A half", []op{flushB, invalidateAHalf}, []op{invalidateAHalf, flushB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memA, nA := run(t, tt.a)
			memB, nB := run(t, tt.b)
			if !bytes.Equal(memA, memB) {
				t.Error("memory differs between orders")
			}
			if nA != nB {
				t.Errorf("surface count %d vs %d", nA, nB)
			}
		})
	}
}

func TestAccelerateFill(t *testing.T) {
	c, dev, mem := newTestCache(t, 1)
	size := texcodec.RGBA8.GuestSize(16, 16)
	fillPattern(mem, addrA, size, 0)
	s := c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)

	if c.AccelerateFill(regs.MemoryFillConfig{StartAddr: addrA, EndAddr: addrA + size, Value32: 0x11223344, Fill24Bit: true}) {
		t.Fatal("24-bit fill accelerated on an RGBA8 surface")
	}
	if !c.AccelerateFill(regs.MemoryFillConfig{StartAddr: addrA, EndAddr: addrA + size, Value32: 0x11223344, Fill32Bit: true}) {
		t.Fatal("fill not accelerated")
	}
	if got := dev.Counts().Fills; got != 1 {
		t.Errorf("fills = %d, want 1", got)
	}
	c.FlushRegion(addrA, size, s)
	got := memory.Read(mem, addrA, size)
	for i := 0; i < len(got); i += 4 {
		if !bytes.Equal(got[i:i+4], []byte{0x44, 0x33, 0x22, 0x11}) {
			t.Fatalf("pixel at byte %d = % x", i, got[i:i+4])
		}
	}
}

func TestDisplayTransferNeedsCachedSource(t *testing.T) {
	c, dev, mem := newTestCache(t, 1)
	fillPattern(mem, addrA, 0x2000, 0)
	cfg := regs.DisplayTransferConfig{
		InputAddr: addrA, OutputAddr: addrB,
		InputWidth: 16, InputHeight: 16, OutputWidth: 16, OutputHeight: 16,
		InputFormat: regs.GPUPixelRGBA8, OutputFormat: regs.GPUPixelRGB565,
	}
	if c.AccelerateDisplayTransfer(cfg) {
		t.Fatal("transfer accelerated without a cached source")
	}

	c.GetSurface(colorParams(addrA, 16, 16), ScaleExact, true)
	if !c.AccelerateDisplayTransfer(cfg) {
		t.Fatal("transfer not accelerated")
	}
	if got := dev.Counts().Blits; got != 1 {
		t.Errorf("blits = %d, want 1", got)
	}
	dst, _ := c.GetSurfaceSubRect(SurfaceParams{Addr: addrB, Width: 16, Height: 16, Format: texcodec.RGB565, Scale: 1}, ScaleIgnore, false)
	if dst == nil || len(dst.Dirty()) == 0 {
		t.Error("destination not marked host-newer")
	}
}

func TestTextureCubeRecopiesChangedFaces(t *testing.T) {
	c, dev, mem := newTestCache(t, 1)
	faceSize := texcodec.RGBA8.GuestSize(8, 8)
	var cfg CubeConfig
	for i := range cfg.Faces {
		cfg.Faces[i] = addrA + uint32(i)*faceSize
	}
	cfg.Width, cfg.Levels, cfg.Format = 8, 1, texcodec.RGBA8
	fillPattern(mem, addrA, 6*faceSize, 0)

	tex := c.GetTextureCube(cfg)
	if tex == gpucore.InvalidID {
		t.Fatal("no cube texture")
	}
	if got := dev.Counts().Blits; got != 6 {
		t.Fatalf("first resolve blits = %d, want 6", got)
	}
	dev.Reset()
	if c.GetTextureCube(cfg) != tex || dev.Counts().Blits != 0 {
		t.Errorf("unchanged cube recopied %d faces", dev.Counts().Blits)
	}

	fillPattern(mem, cfg.Faces[2], faceSize, 9)
	c.InvalidateRegion(cfg.Faces[2], faceSize, nil)
	dev.Reset()
	c.GetTextureCube(cfg)
	if got := dev.Counts().Blits; got != 1 {
		t.Errorf("blits after one face changed = %d, want 1", got)
	}
}

func TestSamplerDedup(t *testing.T) {
	c, dev, _ := newTestCache(t, 1)
	var tc regs.TextureConfig
	tc.MagFilter = regs.FilterLinear
	a := c.GetSampler(SamplerFromConfig(&tc))
	b := c.GetSampler(SamplerFromConfig(&tc))
	tc.WrapS = regs.WrapRepeat
	d := c.GetSampler(SamplerFromConfig(&tc))
	if a != b || a == d {
		t.Errorf("samplers a=%d b=%d d=%d", a, b, d)
	}
	if got := dev.Counts().SamplersMade; got != 2 {
		t.Errorf("samplers made = %d, want 2", got)
	}
}

func TestFramebufferDropsOverlappingDepth(t *testing.T) {
	c, _, _ := newTestCache(t, 1)
	fbRegs := regs.FramebufferRegs{
		ColorAddr: addrA, DepthAddr: addrA + 0x100,
		Width: 16, Height: 16,
		ColorFormat: regs.ColorRGBA8, DepthFormat: regs.DepthD24S8,
	}
	fb := c.GetFramebufferSurfaces(true, true, &fbRegs, gpucore.RectWH(0, 0, 16, 16))
	if fb.Color == nil || fb.Depth != nil {
		t.Errorf("color=%v depth=%v, want color only", fb.Color != nil, fb.Depth != nil)
	}

	fbRegs.DepthAddr = addrB
	fb = c.GetFramebufferSurfaces(true, true, &fbRegs, gpucore.RectWH(0, 0, 8, 8))
	if fb.Depth == nil {
		t.Fatal("disjoint depth buffer dropped")
	}
	c.InvalidateRenderTargets(&fb, true, false)
	if len(fb.Color.Dirty()) != 1 || len(fb.Depth.Dirty()) != 0 {
		t.Errorf("dirty color=%v depth=%v", fb.Color.Dirty(), fb.Depth.Dirty())
	}
}
