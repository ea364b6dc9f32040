package memory

import (
	"errors"
	"testing"
)

func TestFlatPhysicalPointer(t *testing.T) {
	m := NewFlat()
	if err := m.Map(0x1000, make([]byte, 0x100)); err != nil {
		t.Fatal(err)
	}
	if err := m.Map(0x4000, make([]byte, 0x10)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		addr    uint32
		wantLen int
	}{
		{"start of first", 0x1000, 0x100},
		{"inside first", 0x10f0, 0x10},
		{"gap", 0x2000, 0},
		{"end of first", 0x1100, 0},
		{"second", 0x4008, 8},
		{"below", 0x10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(m.PhysicalPointer(tt.addr)); got != tt.wantLen {
				t.Errorf("len(PhysicalPointer(%#x)) = %d, want %d", tt.addr, got, tt.wantLen)
			}
		})
	}
}

func TestFlatOverlap(t *testing.T) {
	m := NewFlat()
	if err := m.Map(0x1000, make([]byte, 0x100)); err != nil {
		t.Fatal(err)
	}
	if err := m.Map(0x10ff, make([]byte, 4)); !errors.Is(err, ErrOverlap) {
		t.Errorf("Map overlapping = %v, want ErrOverlap", err)
	}
	if err := m.Map(0x2000, nil); !errors.Is(err, ErrEmptyRegion) {
		t.Errorf("Map empty = %v, want ErrEmptyRegion", err)
	}
}

func TestReadWrite(t *testing.T) {
	m := NewDefault(0x1000)
	if !Write(m, FCRAMBase+4, []byte{1, 2, 3}) {
		t.Fatal("Write failed")
	}
	got := Read(m, FCRAMBase+4, 3)
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("Read = %v", got)
	}
	if Read(m, FCRAMBase+0xfff, 2) != nil {
		t.Error("Read past the end of a region should fail")
	}
	if Write(m, 0x100, []byte{1}) {
		t.Error("Write to unmapped memory should fail")
	}
}
