package pica

import (
	"github.com/gogpu/pica/internal/custom"
	"github.com/gogpu/pica/internal/shader"
)

// Option configures a Rasterizer during creation.
//
// Example:
//
//	r, err := pica.New(mem, dev, st,
//	    pica.WithResolutionScale(2),
//	    pica.WithShaderCacheDir(dir),
//	)
type Option func(*options)

// TextureFilter overrides the filtering requested by the guest.
type TextureFilter uint8

const (
	// FilterGuest samples the way the guest configured each unit.
	FilterGuest TextureFilter = iota
	// FilterNearest forces point sampling.
	FilterNearest
	// FilterLinear forces bilinear sampling.
	FilterLinear
)

func (f TextureFilter) String() string {
	switch f {
	case FilterNearest:
		return "nearest"
	case FilterLinear:
		return "linear"
	}
	return "guest"
}

// options holds optional configuration for Rasterizer creation.
type options struct {
	scale          uint32
	programID      uint64
	shaderCacheDir string
	pack           *custom.Pack
	compiler       shader.Compiler
	filter         TextureFilter

	noMinMaxBlend      bool
	noFramebufferFetch bool
	progress           ProgressFunc
}

func defaultOptions() options {
	return options{scale: 1}
}

// WithResolutionScale renders surfaces at scale times the guest resolution.
// Values below 1 are ignored.
func WithResolutionScale(scale uint32) Option {
	return func(o *options) {
		if scale >= 1 {
			o.scale = scale
		}
	}
}

// WithProgramID sets the title served by the default shader manager.
func WithProgramID(id uint64) Option {
	return func(o *options) {
		o.programID = id
	}
}

// WithShaderCacheDir enables the shader disk cache in dir.
func WithShaderCacheDir(dir string) Option {
	return func(o *options) {
		o.shaderCacheDir = dir
	}
}

// WithCustomTextures replaces guest textures found in pack.
func WithCustomTextures(pack *custom.Pack) Option {
	return func(o *options) {
		o.pack = pack
	}
}

// WithShaderCompiler replaces the WGSL to SPIR-V compiler. Tests use it
// to avoid the real compiler.
func WithShaderCompiler(c func(src string) ([]uint32, error)) Option {
	return func(o *options) {
		o.compiler = c
	}
}

// WithTextureFilter overrides guest texture filtering.
func WithTextureFilter(f TextureFilter) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithoutMinMaxBlend treats the device as lacking min/max blending with
// factors, so such blending runs in the fragment shader.
func WithoutMinMaxBlend() Option {
	return func(o *options) {
		o.noMinMaxBlend = true
	}
}

// WithoutFramebufferFetch treats the device as unable to read the color
// attachment in shaders.
func WithoutFramebufferFetch() Option {
	return func(o *options) {
		o.noFramebufferFetch = true
	}
}

// WithProgress receives shader disk cache progress on title switches.
func WithProgress(cb ProgressFunc) Option {
	return func(o *options) {
		o.progress = cb
	}
}
