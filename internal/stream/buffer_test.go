package stream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/internal/gputest"
)

func newTestBuffer(t *testing.T, size uint64) (*Buffer, *gputest.Recorder) {
	t.Helper()
	rec := gputest.NewRecorder()
	b, err := New(rec, "test", size, gputypes.BufferUsageUniform)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, rec
}

func TestMapAlignment(t *testing.T) {
	b, _ := newTestBuffer(t, 1024)
	r, err := b.Map(10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Unmap(10); err != nil {
		t.Fatal(err)
	}
	r, err = b.Map(16, 256)
	if err != nil {
		t.Fatal(err)
	}
	if r.Offset != 256 {
		t.Errorf("Offset = %d, want 256", r.Offset)
	}
	if r.Invalidated {
		t.Error("Invalidated = true before wrap")
	}
	_ = b.Unmap(0)
}

func TestWrapInvalidatesExactlyOnce(t *testing.T) {
	const capacity = 1000
	b, _ := newTestBuffer(t, capacity)

	type live struct{ start, end uint64 }
	var inFlight []live
	invalidations := 0
	var total uint64

	// 12 maps of 100 bytes: the 11th no longer fits and wraps.
	for i := 0; i < 12; i++ {
		r, err := b.Map(100, 1)
		if err != nil {
			t.Fatalf("Map %d: %v", i, err)
		}
		if r.Invalidated {
			invalidations++
			inFlight = inFlight[:0]
		}
		cur := live{r.Offset, r.Offset + 100}
		for _, l := range inFlight {
			if cur.start < l.end && l.start < cur.end {
				t.Fatalf("Map %d: region [%d,%d) overlaps live [%d,%d)", i, cur.start, cur.end, l.start, l.end)
			}
		}
		inFlight = append(inFlight, cur)
		if err := b.Unmap(100); err != nil {
			t.Fatalf("Unmap %d: %v", i, err)
		}
		total += 100
	}
	if total <= capacity {
		t.Fatalf("test did not exceed capacity")
	}
	if invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", invalidations)
	}
	if b.Wraps() != 1 {
		t.Errorf("Wraps() = %d, want 1", b.Wraps())
	}
}

func TestUnmapUploadsOnlyUsed(t *testing.T) {
	b, rec := newTestBuffer(t, 64)
	r, err := b.Map(32, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range r.Data {
		r.Data[i] = 0xaa
	}
	if err := b.Unmap(8); err != nil {
		t.Fatal(err)
	}
	got := rec.Buffer(b.ID())
	if !bytes.Equal(got[:8], bytes.Repeat([]byte{0xaa}, 8)) {
		t.Errorf("committed bytes = %x", got[:8])
	}
	if got[8] != 0 {
		t.Errorf("byte past used = %#x, want untouched", got[8])
	}
	r, _ = b.Map(4, 1)
	if r.Offset != 8 {
		t.Errorf("next Offset = %d, want 8", r.Offset)
	}
}

func TestMapErrors(t *testing.T) {
	b, _ := newTestBuffer(t, 64)
	if _, err := b.Map(65, 1); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("oversized Map err = %v, want ErrCapacityExceeded", err)
	}
	if _, err := b.Map(8, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Map(8, 1); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("double Map err = %v, want ErrAlreadyMapped", err)
	}
	if err := b.Unmap(16); err == nil {
		t.Error("Unmap beyond mapped size succeeded")
	}
	if err := b.Unmap(0); !errors.Is(err, ErrNotMapped) {
		t.Errorf("Unmap without Map err = %v, want ErrNotMapped", err)
	}
}
