package shader

import (
	"slices"
	"testing"

	"github.com/gogpu/pica/internal/gputest"
)

const (
	titleDefault = 0x0004000000030000
	titleA       = 0x0004000000055d00
	titleB       = 0x0004000000086300
	appletHome   = 0x0004003000008f02
	appletSwkbd  = 0x0004003000008d02
)

func TestIsApplet(t *testing.T) {
	tests := []struct {
		id   uint64
		want bool
	}{
		{appletHome, true},
		{appletSwkbd, true},
		{titleA, false},
		{0, false},
	}
	for _, tt := range tests {
		if got := IsApplet(tt.id); got != tt.want {
			t.Errorf("IsApplet(%016X) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestRegistrySwitch(t *testing.T) {
	tests := []struct {
		name   string
		titles []uint64
		want   []uint64
	}{
		{"title to title", []uint64{titleA, titleB}, []uint64{titleDefault, titleB}},
		{"title to applet keeps title", []uint64{titleA, appletHome}, []uint64{titleDefault, titleA, appletHome}},
		{"applet to applet drops previous applet", []uint64{appletHome, appletSwkbd}, []uint64{titleDefault, appletSwkbd}},
		{"applet back to title", []uint64{titleA, appletHome, titleA}, []uint64{titleDefault, titleA}},
		{"applets then new title", []uint64{appletHome, appletSwkbd, titleB}, []uint64{titleDefault, titleB}},
		{"same title twice", []uint64{titleA, titleA}, []uint64{titleDefault, titleA}},
		{"back to default", []uint64{titleA, titleDefault}, []uint64{titleDefault}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := gputest.NewRecorder()
			r := NewRegistry(rec, Options{Compiler: (&fakeCompiler{}).compile})
			defer r.Destroy()
			if err := r.LoadDefault(titleDefault, nil, nil); err != nil {
				t.Fatalf("LoadDefault: %v", err)
			}
			for _, id := range tt.titles {
				if err := r.SwitchDiskResources(id, nil); err != nil {
					t.Fatalf("SwitchDiskResources(%016X): %v", id, err)
				}
			}
			if got := r.ProgramIDs(); !slices.Equal(got, tt.want) {
				t.Errorf("resident = %016X, want %016X", got, tt.want)
			}
			if got := r.Current().ProgramID(); got != tt.titles[len(tt.titles)-1] {
				t.Errorf("current = %016X, want %016X", got, tt.titles[len(tt.titles)-1])
			}
		})
	}
}

func TestRegistryPurgeDestroysModules(t *testing.T) {
	rec := gputest.NewRecorder()
	r := NewRegistry(rec, Options{Compiler: (&fakeCompiler{}).compile})
	defer r.Destroy()
	if err := r.LoadDefault(titleDefault, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.SwitchDiskResources(titleA, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.Current().UseTrivialVertexShader(); err != nil {
		t.Fatal(err)
	}
	if rec.Counts().ShadersAlive != 1 {
		t.Fatalf("ShadersAlive = %d, want 1", rec.Counts().ShadersAlive)
	}
	if err := r.SwitchDiskResources(titleB, nil); err != nil {
		t.Fatal(err)
	}
	if n := rec.Counts().ShadersAlive; n != 0 {
		t.Errorf("ShadersAlive = %d after purging title A, want 0", n)
	}
}
