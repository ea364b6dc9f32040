package pica

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    func(Config) bool
		wantErr error
	}{
		{"empty keeps defaults", "", func(c Config) bool { return c == DefaultConfig() }, nil},
		{"scale and filter", "resolution_scale = 3\ntexture_filter = \"nearest\"\n",
			func(c Config) bool { return c.ResolutionScale == 3 && c.TextureFilter == "nearest" }, nil},
		{"overrides", "disable_minmax_blend = true\ndisable_framebuffer_fetch = true\n",
			func(c Config) bool { return c.DisableMinMaxBlend && c.DisableFramebufferFetch }, nil},
		{"unknown keys tolerated", "resolution_scale = 2\nvsync = true\n",
			func(c Config) bool { return c.ResolutionScale == 2 }, nil},
		{"scale out of range", "resolution_scale = 11\n", nil, ErrInvalidConfig},
		{"bad filter", "texture_filter = \"bicubic\"\n", nil, ErrInvalidConfig},
		{"negative budget", "custom_texture_budget = -1\n", nil, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DecodeConfig(strings.NewReader(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !tt.want(cfg) {
				t.Errorf("config = %+v", cfg)
			}
		})
	}
}

func TestDecodeConfigSyntaxError(t *testing.T) {
	if _, err := DecodeConfig(strings.NewReader("resolution_scale = ")); err == nil {
		t.Error("malformed TOML accepted")
	}
}

func TestConfigEncodeRoundTrip(t *testing.T) {
	in := DefaultConfig()
	in.ResolutionScale = 2
	in.ShaderCacheDir = "/var/cache/pica"
	in.TextureFilter = FilterLinear.String()

	var buf bytes.Buffer
	if err := in.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	out, err := DecodeConfig(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pica.toml")
	if err := os.WriteFile(path, []byte("resolution_scale = 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ResolutionScale != 4 {
		t.Errorf("ResolutionScale = %d, want 4", cfg.ResolutionScale)
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResolutionScale = 2
	cfg.ShaderCacheDir = t.TempDir()
	cfg.TextureFilter = "linear"
	cfg.DisableMinMaxBlend = true

	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.scale != 2 || o.filter != FilterLinear || o.shaderCacheDir != cfg.ShaderCacheDir || !o.noMinMaxBlend {
		t.Errorf("options = %+v", o)
	}

	cfg.DiskCache = false
	opts, _ = cfg.Options()
	o = defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.shaderCacheDir != "" {
		t.Error("shader cache dir set with disk_cache = false")
	}
}
