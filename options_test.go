package pica

import "testing"

func TestOptions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		check func(*testing.T, options)
	}{
		{"defaults", nil, func(t *testing.T, o options) {
			if o.scale != 1 || o.filter != FilterGuest || o.compiler != nil {
				t.Errorf("defaults = %+v", o)
			}
		}},
		{"scale", []Option{WithResolutionScale(4)}, func(t *testing.T, o options) {
			if o.scale != 4 {
				t.Errorf("scale = %d, want 4", o.scale)
			}
		}},
		{"zero scale ignored", []Option{WithResolutionScale(0)}, func(t *testing.T, o options) {
			if o.scale != 1 {
				t.Errorf("scale = %d, want 1", o.scale)
			}
		}},
		{"program and cache", []Option{WithProgramID(0x42), WithShaderCacheDir("/tmp/x")}, func(t *testing.T, o options) {
			if o.programID != 0x42 || o.shaderCacheDir != "/tmp/x" {
				t.Errorf("programID %X dir %q", o.programID, o.shaderCacheDir)
			}
		}},
		{"overrides", []Option{WithoutMinMaxBlend(), WithoutFramebufferFetch(), WithTextureFilter(FilterLinear)}, func(t *testing.T, o options) {
			if !o.noMinMaxBlend || !o.noFramebufferFetch || o.filter != FilterLinear {
				t.Errorf("overrides = %+v", o)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			for _, opt := range tt.opts {
				opt(&o)
			}
			tt.check(t, o)
		})
	}
}

func TestCapabilityOverrides(t *testing.T) {
	rig := newTestRig(t, WithoutMinMaxBlend(), WithoutFramebufferFetch())
	if rig.r.caps.BlendMinMaxFactor || rig.r.caps.FramebufferFetch {
		t.Errorf("caps = %+v, want overrides applied", rig.r.caps)
	}
}

func TestTextureFilterString(t *testing.T) {
	for f, want := range map[TextureFilter]string{FilterGuest: "guest", FilterNearest: "nearest", FilterLinear: "linear"} {
		if got := f.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", f, got, want)
		}
		if back, ok := parseFilter(want); !ok || back != f {
			t.Errorf("parseFilter(%q) = %v, %v", want, back, ok)
		}
	}
}
