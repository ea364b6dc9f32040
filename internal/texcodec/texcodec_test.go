package texcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/pica/regs"
)

func TestMortonFirstTile(t *testing.T) {
	tests := []struct {
		x, y uint32
		want uint32
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, 2},
		{1, 1, 3},
		{2, 0, 4},
		{7, 7, 63},
		{8, 0, 64},
		{0, 8, 128},
	}
	for _, tt := range tests {
		if got := PixelIndex(tt.x, tt.y, 16, true); got != tt.want {
			t.Errorf("PixelIndex(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestColorRoundTrip(t *testing.T) {
	formats := []PixelFormat{RGBA8, RGB8, RGB5A1, RGB565, RGBA4}
	const w, h = 16, 8
	host := make([]byte, w*h*4)
	for i := range host {
		host[i] = uint8(i * 37)
	}
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			guest := make([]byte, f.GuestSize(w, h))
			if err := Encode(f, guest, host, w, h, true); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(f, guest, w, h, true)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			again := make([]byte, len(guest))
			if err := Encode(f, again, got, w, h, true); err != nil {
				t.Fatalf("re-Encode: %v", err)
			}
			if !bytes.Equal(guest, again) {
				t.Error("encode(decode(x)) != x")
			}
		})
	}
}

func TestDecodeChannels(t *testing.T) {
	tests := []struct {
		name   string
		format PixelFormat
		data   []byte
		want   [4]uint8
	}{
		{"rgba8", RGBA8, []byte{0x44, 0x33, 0x22, 0x11}, [4]uint8{0x11, 0x22, 0x33, 0x44}},
		{"rgb8", RGB8, []byte{0x33, 0x22, 0x11}, [4]uint8{0x11, 0x22, 0x33, 0xff}},
		{"ia8", IA8, []byte{0x80, 0x40}, [4]uint8{0x40, 0x40, 0x40, 0x80}},
		{"rg8", RG8, []byte{0x20, 0x10}, [4]uint8{0x10, 0x20, 0, 0xff}},
		{"a8", A8, []byte{0x7f}, [4]uint8{0, 0, 0, 0x7f}},
		{"ia4", IA4, []byte{0xa5}, [4]uint8{0xaa, 0xaa, 0xaa, 0x55}},
		{"i4 even", I4, []byte{0x3c}, [4]uint8{0xcc, 0xcc, 0xcc, 0xff}},
		{"rgb565 white", RGB565, []byte{0xff, 0xff}, [4]uint8{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodePixel(tt.format, tt.data, 0, 0, 1, false); got != tt.want {
				t.Errorf("DecodePixel = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDepthRoundTrip(t *testing.T) {
	const w, h = 8, 8
	guest := make([]byte, D24S8.GuestSize(w, h))
	for i := 0; i < len(guest); i += 4 {
		guest[i], guest[i+1], guest[i+2], guest[i+3] = uint8(i), 0x80, uint8(i/4), uint8(i/4)
	}
	host, err := Decode(D24S8, guest, w, h, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(host) != w*h*5 {
		t.Fatalf("host size = %d, want %d", len(host), w*h*5)
	}
	f := math.Float32frombits(binary.LittleEndian.Uint32(host))
	if f < 0 || f > 1 {
		t.Errorf("depth = %v, out of range", f)
	}
	back := make([]byte, len(guest))
	if err := Encode(D24S8, back, host, w, h, true); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(back, guest) {
		t.Error("D24S8 round trip mismatch")
	}
}

func TestETC1SolidBlock(t *testing.T) {
	// Differential mode, base color 31/31/31 (white), no delta, table 0,
	// all pixel indices zero (+2 modifier) saturates at white.
	hi := uint32(31)<<27 | uint32(31)<<19 | uint32(31)<<11 | 2
	block := uint64(hi) << 32
	src := make([]byte, 8*4)
	for b := 0; b < 4; b++ {
		binary.LittleEndian.PutUint64(src[b*8:], block)
	}
	out, err := Decode(ETC1, src, 8, 8, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := 0; i < len(out); i += 4 {
		if out[i] != 255 || out[i+1] != 255 || out[i+2] != 255 || out[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want opaque white", i/4, out[i:i+4])
		}
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	_, err := Decode(RGBA8, make([]byte, 10), 8, 8, true)
	if !errors.Is(err, ErrShortBuffer) {
		t.Errorf("err = %v, want ErrShortBuffer", err)
	}
}

func TestFormatConversions(t *testing.T) {
	if FromDepth(regs.DepthD24S8) != D24S8 || !D24S8.IsDepth() {
		t.Error("D24S8 conversion")
	}
	if FromColor(regs.ColorRGB565) != RGB565 || RGB565.Type() != TypeColor {
		t.Error("RGB565 conversion")
	}
	if FromTexture(regs.TexETC1A4) != ETC1A4 || !ETC1A4.IsCompressed() {
		t.Error("ETC1A4 conversion")
	}
	if !CheckFormatsBlittable(RGBA8, RGB565) || CheckFormatsBlittable(RGBA8, D16) {
		t.Error("blittable check")
	}
}

func TestScaleRoundTrip(t *testing.T) {
	tests := []struct {
		format PixelFormat
		w, h   uint32
	}{
		{RGBA8, 8, 8},
		{D16, 8, 8},
		{D24S8, 8, 16},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			n := tt.w * tt.h * tt.format.HostBytesPerPixel()
			src := make([]byte, n)
			for i := range src {
				src[i] = uint8(i * 7)
			}
			up := Upscale(tt.format, src, tt.w, tt.h, 3)
			if got, want := uint32(len(up)), n*9; got != want {
				t.Fatalf("upscaled size = %d, want %d", got, want)
			}
			down := Downscale(tt.format, up, tt.w*3, tt.h*3, 3)
			if !bytes.Equal(down, src) {
				t.Error("downscale(upscale(x)) != x")
			}
		})
	}
}
