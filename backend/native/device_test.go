package native

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/pica/gpucore"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	dev, queue, cleanup := createNoopDevice(t)
	d, err := New(dev, queue, nil)
	if err != nil {
		cleanup()
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		d.Destroy()
		cleanup()
	})
	return d
}

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil, nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil) error = %v, want ErrNilDevice", err)
	}
}

func TestCapabilities(t *testing.T) {
	d := newTestDevice(t)
	caps := d.Capabilities()
	if caps.BlendMinMaxFactor {
		t.Error("BlendMinMaxFactor should be false")
	}
	if caps.UniformOffsetAlignment < 16 {
		t.Errorf("UniformOffsetAlignment = %d, want >= 16", caps.UniformOffsetAlignment)
	}
	if caps.MaxTextureSize == 0 {
		t.Error("MaxTextureSize is zero")
	}
}

func TestTextureLifecycle(t *testing.T) {
	d := newTestDevice(t)

	if _, err := d.CreateTexture(&gpucore.TextureDescriptor{Width: 0, Height: 4}); err == nil {
		t.Error("expected error for zero width")
	}

	id, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Label: "color", Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8Unorm, RenderTarget: true,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	tests := []struct {
		name   string
		region gpucore.TextureRegion
		data   []byte
		want   error
	}{
		{"full", gpucore.TextureRegion{Texture: id, Rect: gpucore.RectWH(0, 0, 8, 8)}, make([]byte, 8*8*4), nil},
		{"short", gpucore.TextureRegion{Texture: id, Rect: gpucore.RectWH(0, 0, 8, 8)}, make([]byte, 10), ErrShortData},
		{"outside", gpucore.TextureRegion{Texture: id, Rect: gpucore.RectWH(4, 4, 8, 8)}, make([]byte, 8*8*4), ErrOutOfBounds},
		{"bad level", gpucore.TextureRegion{Texture: id, Level: 1, Rect: gpucore.RectWH(0, 0, 1, 1)}, make([]byte, 4), ErrOutOfBounds},
		{"unknown", gpucore.TextureRegion{Texture: id + 100, Rect: gpucore.RectWH(0, 0, 1, 1)}, make([]byte, 4), ErrUnknownResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.WriteTexture(tt.region, tt.data)
			if tt.want == nil {
				if err != nil {
					t.Errorf("WriteTexture: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("WriteTexture error = %v, want %v", err, tt.want)
			}
		})
	}

	d.DestroyTexture(id)
	if err := d.WriteTexture(gpucore.TextureRegion{Texture: id, Rect: gpucore.RectWH(0, 0, 1, 1)}, make([]byte, 4)); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("write after destroy error = %v, want ErrUnknownResource", err)
	}
	// Destroying twice is a no-op.
	d.DestroyTexture(id)
}

func TestWriteBufferBounds(t *testing.T) {
	d := newTestDevice(t)
	id, err := d.CreateBuffer(&gpucore.BufferDescriptor{Label: "vb", Size: 64, Usage: gputypes.BufferUsageVertex})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	tests := []struct {
		name    string
		offset  uint64
		size    int
		wantErr bool
	}{
		{"start", 0, 16, false},
		{"end", 48, 16, false},
		{"empty", 64, 0, false},
		{"overflow", 56, 16, true},
		{"past end", 80, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.WriteBuffer(id, tt.offset, make([]byte, tt.size))
			if (err != nil) != tt.wantErr {
				t.Errorf("WriteBuffer(%d, %d) error = %v, wantErr %v", tt.offset, tt.size, err, tt.wantErr)
			}
		})
	}
	d.DestroyBuffer(id)
	if err := d.WriteBuffer(id, 0, []byte{1}); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("write after destroy error = %v, want ErrUnknownResource", err)
	}
}

func TestTextureContains(t *testing.T) {
	tex := &texture{desc: gpucore.TextureDescriptor{Width: 16, Height: 8, MipLevels: 2}}
	tests := []struct {
		name   string
		region gpucore.TextureRegion
		want   bool
	}{
		{"whole level", gpucore.TextureRegion{Rect: gpucore.RectWH(0, 0, 16, 8)}, true},
		{"inner", gpucore.TextureRegion{Rect: gpucore.RectWH(2, 4, 8, 4)}, true},
		{"past right", gpucore.TextureRegion{Rect: gpucore.RectWH(10, 0, 8, 4)}, false},
		{"past bottom", gpucore.TextureRegion{Rect: gpucore.RectWH(0, 6, 4, 4)}, false},
		{"inverted", gpucore.TextureRegion{Rect: gpucore.Rect{Left: 4, Top: 0, Right: 2, Bottom: 2}}, false},
		{"second level", gpucore.TextureRegion{Level: 1, Rect: gpucore.RectWH(0, 0, 8, 4)}, true},
		{"second level too wide", gpucore.TextureRegion{Level: 1, Rect: gpucore.RectWH(0, 0, 16, 4)}, false},
		{"missing level", gpucore.TextureRegion{Level: 2, Rect: gpucore.RectWH(0, 0, 1, 1)}, false},
		{"missing layer", gpucore.TextureRegion{Layer: 1, Rect: gpucore.RectWH(0, 0, 1, 1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tex.contains(tt.region); got != tt.want {
				t.Errorf("contains(%+v) = %v, want %v", tt.region, got, tt.want)
			}
		})
	}
}

func TestDrawRequiresTargetAndProgram(t *testing.T) {
	d := newTestDevice(t)
	if err := d.Draw(gputypes.PrimitiveTopologyTriangleList, 3, 0); !errors.Is(err, ErrNoRenderTarget) {
		t.Errorf("Draw without target error = %v, want ErrNoRenderTarget", err)
	}
	color, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, RenderTarget: true,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	d.SetRenderTargets(gpucore.RenderTargets{Color: color})
	if err := d.Draw(gputypes.PrimitiveTopologyTriangleList, 3, 0); !errors.Is(err, ErrNoProgram) {
		t.Errorf("Draw without program error = %v, want ErrNoProgram", err)
	}
	if err := d.DrawIndexed(gputypes.PrimitiveTopologyTriangleList, 3, 0, 0); !errors.Is(err, ErrNoProgram) {
		t.Errorf("DrawIndexed without program error = %v, want ErrNoProgram", err)
	}
}

func TestPipelineReuse(t *testing.T) {
	d := newTestDevice(t)
	color, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, RenderTarget: true,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	spirv := []uint32{0x07230203, 0x00010000, 0, 1, 0}
	vs, err := d.CreateShaderModule(gpucore.StageVertex, spirv, "vs")
	if err != nil {
		t.Fatalf("CreateShaderModule: %v", err)
	}
	fs, err := d.CreateShaderModule(gpucore.StageFragment, spirv, "fs")
	if err != nil {
		t.Fatalf("CreateShaderModule: %v", err)
	}
	d.SetRenderTargets(gpucore.RenderTargets{Color: color})
	d.SetColorWriteMask(gputypes.ColorWriteMaskAll)
	d.UsePrograms(gpucore.Programs{Vertex: vs, Fragment: fs})

	for i := 0; i < 3; i++ {
		if err := d.Draw(gputypes.PrimitiveTopologyTriangleList, 3, 0); err != nil {
			t.Fatalf("Draw %d: %v", i, err)
		}
	}
	hits, misses := d.PipelineStats()
	if misses != 1 || hits != 2 {
		t.Errorf("PipelineStats = (%d, %d), want (2, 1)", hits, misses)
	}

	d.SetColorWriteMask(gputypes.ColorWriteMaskRed)
	if err := d.Draw(gputypes.PrimitiveTopologyTriangleList, 3, 0); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if _, misses := d.PipelineStats(); misses != 2 {
		t.Errorf("misses after write mask change = %d, want 2", misses)
	}

	d.DestroyShaderModule(vs)
	if n := d.pipelines.Len(); n != 0 {
		t.Errorf("pipelines after module destroy = %d, want 0", n)
	}
	if err := d.Flush(); err != nil {
		t.Errorf("Flush: %v", err)
	}
}

func TestFillPattern(t *testing.T) {
	rect := gpucore.RectWH(0, 0, 2, 1)
	tests := []struct {
		name   string
		format gputypes.TextureFormat
		value  gpucore.ClearValue
		want   []byte
	}{
		{
			name:   "rgba8",
			format: gputypes.TextureFormatRGBA8Unorm,
			value:  gpucore.ClearValue{Color: [4]float32{1, 0, 0.5, 2}},
			want:   []byte{255, 0, 128, 255, 255, 0, 128, 255},
		},
		{
			name:   "depth16",
			format: gputypes.TextureFormatDepth16Unorm,
			value:  gpucore.ClearValue{Depth: 1},
			want:   []byte{0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name:   "depth32",
			format: gputypes.TextureFormatDepth32Float,
			value:  gpucore.ClearValue{Depth: 1},
			want:   []byte{0, 0, 0x80, 0x3F, 0, 0, 0x80, 0x3F},
		},
		{
			name:   "depth stencil planes",
			format: gputypes.TextureFormatDepth32FloatStencil8,
			value:  gpucore.ClearValue{Depth: 0, Stencil: 7},
			want:   []byte{0, 0, 0, 0, 0, 0, 0, 0, 7, 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fillPattern(tt.format, rect, tt.value); !bytes.Equal(got, tt.want) {
				t.Errorf("fillPattern = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanes(t *testing.T) {
	tests := []struct {
		format gputypes.TextureFormat
		bpp    []uint32
	}{
		{gputypes.TextureFormatRGBA8Unorm, []uint32{4}},
		{gputypes.TextureFormatDepth16Unorm, []uint32{2}},
		{gputypes.TextureFormatDepth32Float, []uint32{4}},
		{gputypes.TextureFormatDepth32FloatStencil8, []uint32{4, 1}},
	}
	for _, tt := range tests {
		got := planes(tt.format)
		if len(got) != len(tt.bpp) {
			t.Errorf("planes(%v) has %d planes, want %d", tt.format, len(got), len(tt.bpp))
			continue
		}
		for i, p := range got {
			if p.bpp != tt.bpp[i] {
				t.Errorf("planes(%v)[%d].bpp = %d, want %d", tt.format, i, p.bpp, tt.bpp[i])
			}
		}
	}
	if got := aspectFormat(gputypes.TextureFormatDepth32FloatStencil8, gputypes.TextureAspectDepthOnly); got != gputypes.TextureFormatDepth32Float {
		t.Errorf("aspectFormat = %v, want Depth32Float", got)
	}
}

func TestAlignPitch(t *testing.T) {
	tests := []struct{ in, want uint32 }{
		{0, 0},
		{1, 256},
		{256, 256},
		{257, 512},
		{1024, 1024},
	}
	for _, tt := range tests {
		if got := alignPitch(tt.in); got != tt.want {
			t.Errorf("alignPitch(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStencilOperation(t *testing.T) {
	tests := []struct {
		in   gputypes.StencilOperation
		want hal.StencilOperation
	}{
		{gputypes.StencilOperationKeep, hal.StencilOperationKeep},
		{gputypes.StencilOperationZero, hal.StencilOperationZero},
		{gputypes.StencilOperationReplace, hal.StencilOperationReplace},
		{gputypes.StencilOperationInvert, hal.StencilOperationInvert},
		{gputypes.StencilOperationIncrementClamp, hal.StencilOperationIncrementClamp},
		{gputypes.StencilOperationDecrementClamp, hal.StencilOperationDecrementClamp},
		{gputypes.StencilOperationIncrementWrap, hal.StencilOperationIncrementWrap},
		{gputypes.StencilOperationDecrementWrap, hal.StencilOperationDecrementWrap},
	}
	for _, tt := range tests {
		if got := stencilOperation(tt.in); got != tt.want {
			t.Errorf("stencilOperation(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBlitParams(t *testing.T) {
	src := gpucore.TextureRegion{Rect: gpucore.Rect{Left: 0, Top: 2, Right: 4, Bottom: 4}}
	p := blitParams(src, 4, 4, true)
	if len(p) != blitParamsSize {
		t.Fatalf("len = %d, want %d", len(p), blitParamsSize)
	}
	// top = 2/4 = 0.5
	if !bytes.Equal(p[4:8], []byte{0, 0, 0, 0x3F}) {
		t.Errorf("top = %v, want 0.5", p[4:8])
	}
	// flip = 1.0
	if !bytes.Equal(p[16:20], []byte{0, 0, 0x80, 0x3F}) {
		t.Errorf("flip = %v, want 1.0", p[16:20])
	}
}
