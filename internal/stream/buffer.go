// Package stream implements ring buffers for per-draw uploads.
//
// A Buffer hands out monotonically advancing write regions. When a request
// does not fit before the end of the ring the cursor restarts at zero and
// the returned region is flagged Invalidated: offsets handed out earlier may
// now be overwritten, so callers that skip uploads of unchanged data must
// upload again.
package stream

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
)

// Errors returned by Buffer.
var (
	// ErrCapacityExceeded is returned when a request is larger than the ring.
	ErrCapacityExceeded = errors.New("stream: request exceeds buffer capacity")

	// ErrAlreadyMapped is returned by Map while a region is still mapped.
	ErrAlreadyMapped = errors.New("stream: buffer already mapped")

	// ErrNotMapped is returned by Unmap without a preceding Map.
	ErrNotMapped = errors.New("stream: buffer not mapped")
)

// Region is a writable window returned by Map.
type Region struct {
	// Data is the CPU staging memory of the region.
	Data []byte
	// Offset is the byte offset of Data inside the host buffer.
	Offset uint64
	// Invalidated is set when the cursor wrapped to serve this request.
	Invalidated bool
}

// Buffer is a ring of host buffer memory with a CPU staging copy.
// Buffer is not safe for concurrent use.
type Buffer struct {
	dev     gpucore.Device
	id      gpucore.BufferID
	label   string
	staging []byte

	cursor    uint64
	mapped    bool
	mapOffset uint64
	mapSize   uint64

	wraps    uint64
	uploaded uint64
}

// New allocates a ring of size bytes.
func New(dev gpucore.Device, label string, size uint64, usage gputypes.BufferUsage) (*Buffer, error) {
	id, err := dev.CreateBuffer(&gpucore.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("stream: create %s buffer: %w", label, err)
	}
	return &Buffer{
		dev:     dev,
		id:      id,
		label:   label,
		staging: make([]byte, size),
	}, nil
}

// ID returns the host buffer.
func (b *Buffer) ID() gpucore.BufferID { return b.id }

// Size returns the ring capacity in bytes.
func (b *Buffer) Size() uint64 { return uint64(len(b.staging)) }

// Label returns the debug name of the ring.
func (b *Buffer) Label() string { return b.label }

// Wraps returns how many times the cursor restarted at zero.
func (b *Buffer) Wraps() uint64 { return b.wraps }

// Uploaded returns the total number of bytes committed by Unmap.
func (b *Buffer) Uploaded() uint64 { return b.uploaded }

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// Map reserves size bytes aligned to align.
func (b *Buffer) Map(size, align uint64) (Region, error) {
	if b.mapped {
		return Region{}, ErrAlreadyMapped
	}
	if size > b.Size() {
		return Region{}, fmt.Errorf("%w: %s wants %d of %d bytes", ErrCapacityExceeded, b.label, size, b.Size())
	}
	off := alignUp(b.cursor, align)
	invalidated := false
	if off+size > b.Size() {
		off = 0
		invalidated = true
		b.wraps++
	}
	b.mapped = true
	b.mapOffset = off
	b.mapSize = size
	return Region{
		Data:        b.staging[off : off+size : off+size],
		Offset:      off,
		Invalidated: invalidated,
	}, nil
}

// Unmap commits the first used bytes of the mapped region to the host
// buffer and advances the cursor past them.
func (b *Buffer) Unmap(used uint64) error {
	if !b.mapped {
		return ErrNotMapped
	}
	b.mapped = false
	if used > b.mapSize {
		return fmt.Errorf("stream: %s unmap of %d bytes exceeds mapped %d", b.label, used, b.mapSize)
	}
	if used > 0 {
		if err := b.dev.WriteBuffer(b.id, b.mapOffset, b.staging[b.mapOffset:b.mapOffset+used]); err != nil {
			return fmt.Errorf("stream: upload %s: %w", b.label, err)
		}
	}
	b.cursor = b.mapOffset + used
	b.uploaded += used
	return nil
}

// Destroy releases the host buffer.
func (b *Buffer) Destroy() {
	if b.id != gpucore.InvalidID {
		b.dev.DestroyBuffer(b.id)
		b.id = gpucore.InvalidID
	}
}
