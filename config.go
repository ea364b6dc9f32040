package pica

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/pica/internal/custom"
)

// ErrInvalidConfig is returned for configuration values out of range.
var ErrInvalidConfig = errors.New("pica: invalid config")

// Config is the file form of the rasterizer options.
//
//	resolution_scale = 2
//	shader_cache_dir = "/var/cache/pica"
//	disk_cache = true
//	custom_texture_dir = "textures/00040000001B5000"
//	texture_filter = "linear"
type Config struct {
	ResolutionScale  uint32 `toml:"resolution_scale"`
	ShaderCacheDir   string `toml:"shader_cache_dir"`
	DiskCache        bool   `toml:"disk_cache"`
	CustomTextureDir string `toml:"custom_texture_dir"`
	// CustomTextureBudget bounds decoded replacement images in bytes.
	CustomTextureBudget int64  `toml:"custom_texture_budget"`
	TextureFilter       string `toml:"texture_filter"`

	// Capability overrides, mostly for debugging the shader emulation paths.
	DisableMinMaxBlend      bool `toml:"disable_minmax_blend"`
	DisableFramebufferFetch bool `toml:"disable_framebuffer_fetch"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		ResolutionScale:     1,
		DiskCache:           true,
		CustomTextureBudget: custom.DefaultBudget,
		TextureFilter:       FilterGuest.String(),
	}
}

// DecodeConfig reads a TOML configuration. Keys absent from r keep their
// DefaultConfig values.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("pica: decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		Logger().Warn("pica: unknown config keys", "keys", fmt.Sprint(undecoded))
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("pica: open config: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f)
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func parseFilter(s string) (TextureFilter, bool) {
	switch strings.ToLower(s) {
	case "", "guest":
		return FilterGuest, true
	case "nearest":
		return FilterNearest, true
	case "linear":
		return FilterLinear, true
	}
	return FilterGuest, false
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.ResolutionScale < 1 || c.ResolutionScale > 10 {
		return fmt.Errorf("%w: resolution_scale %d outside 1..10", ErrInvalidConfig, c.ResolutionScale)
	}
	if _, ok := parseFilter(c.TextureFilter); !ok {
		return fmt.Errorf("%w: texture_filter %q", ErrInvalidConfig, c.TextureFilter)
	}
	if c.CustomTextureBudget < 0 {
		return fmt.Errorf("%w: negative custom_texture_budget", ErrInvalidConfig)
	}
	return nil
}

// Options converts the configuration into rasterizer options. It opens
// the custom texture pack when a directory is set.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	filter, _ := parseFilter(c.TextureFilter)
	opts := []Option{
		WithResolutionScale(c.ResolutionScale),
		WithTextureFilter(filter),
	}
	if c.DiskCache && c.ShaderCacheDir != "" {
		opts = append(opts, WithShaderCacheDir(c.ShaderCacheDir))
	}
	if c.CustomTextureDir != "" {
		budget := c.CustomTextureBudget
		if budget == 0 {
			budget = custom.DefaultBudget
		}
		pack, err := custom.Open(c.CustomTextureDir, budget)
		if err != nil {
			return nil, fmt.Errorf("pica: custom textures: %w", err)
		}
		Logger().Info("pica: custom textures indexed", "dir", c.CustomTextureDir, "textures", pack.Len())
		opts = append(opts, WithCustomTextures(pack))
	}
	if c.DisableMinMaxBlend {
		opts = append(opts, WithoutMinMaxBlend())
	}
	if c.DisableFramebufferFetch {
		opts = append(opts, WithoutFramebufferFetch())
	}
	return opts, nil
}
