package custom

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		want Entry
	}{
		{"tex1_64x32_00000000DEADBEEF_3.png", true, Entry{Width: 64, Height: 32, Hash: 0xDEADBEEF, Format: 3}},
		{"pack/tex1_8x8_0123456789ABCDEF_12.webp", true, Entry{Width: 8, Height: 8, Hash: 0x0123456789ABCDEF, Format: 12}},
		{"tex1_8x8_0123456789ABCDEF_12.jpg", false, Entry{}},
		{"readme.png", false, Entry{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseName(tt.name)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			got.Path = ""
			if ok && got != tt.want {
				t.Errorf("ParseName = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestOpenAndLoad(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "tex1_4x4_00000000000000AB_0.png"), 4, 4, color.NRGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(dir, "ignored.png"), 1, 1, color.NRGBA{})

	p, err := Open(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 1 || !p.Has(0xAB) {
		t.Fatalf("index = %d entries, want hash 0xAB", p.Len())
	}

	img, err := p.Load(0xAB, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 8 || len(img.Pix) != 8*8*4 {
		t.Fatalf("image %dx%d with %d bytes", img.Width, img.Height, len(img.Pix))
	}
	if img.Pix[0] != 255 || img.Pix[3] != 255 {
		t.Errorf("first pixel = %v, want opaque red", img.Pix[:4])
	}
	if _, err := p.Load(0xAB, 8, 8); err != nil {
		t.Fatal(err)
	}
	if st := p.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats = %+v, want 1 hit 1 miss", st)
	}

	if _, err := p.Load(0xCD, 4, 4); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
