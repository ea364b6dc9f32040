package pica

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/memory"
	"github.com/gogpu/pica/regs"
)

// VertexArrayInfo is the vertex range referenced by a batch.
type VertexArrayInfo struct {
	Min, Max uint32
	// GuestSize is the byte count read from the attribute loaders.
	GuestSize uint64
	// HostSize is the byte count of the decoded host vertices.
	HostSize uint64
}

// Count returns the number of vertices in the range.
func (v VertexArrayInfo) Count() uint32 { return v.Max - v.Min + 1 }

// numAttributes is the attribute count fed to the accelerated vertex program.
func numAttributes(va *regs.VertexAttributes) int {
	return int(min(va.NumAttributes, regs.MaxAttributes))
}

// AnalyzeVertexArray finds the referenced vertex range. Indexed batches
// scan the index array. It reports false when guest memory is unmapped.
func (r *Rasterizer) AnalyzeVertexArray(indexed bool) (VertexArrayInfo, bool) {
	p := &r.st.Regs.Pipeline
	va := &p.VertexAttributes
	if p.NumVertices == 0 {
		return VertexArrayInfo{}, false
	}

	var info VertexArrayInfo
	if indexed {
		addr := va.BaseAddress + p.IndexOffset
		size := p.NumVertices
		if p.IndexFormat16 {
			size *= 2
		}
		r.cache.FlushRegion(addr, size, nil)
		data := memory.Read(r.mem, addr, size)
		if data == nil {
			Logger().Warn("pica: index array not mapped", "addr", addr, "size", size)
			return VertexArrayInfo{}, false
		}
		info.Min, info.Max = 0xffff, 0
		for i := uint32(0); i < p.NumVertices; i++ {
			v := indexAt(data, i, p.IndexFormat16)
			info.Min = min(info.Min, v)
			info.Max = max(info.Max, v)
		}
	} else {
		info.Min = p.VertexOffset
		info.Max = p.VertexOffset + p.NumVertices - 1
	}

	n := uint64(info.Count())
	for i := range va.Loaders {
		l := &va.Loaders[i]
		if l.ComponentCount != 0 {
			info.GuestSize += uint64(l.ByteCount) * n
		}
	}
	info.HostSize = uint64(numAttributes(va)) * 16 * n
	return info, true
}

func indexAt(data []byte, i uint32, wide bool) uint32 {
	if wide {
		return uint32(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return uint32(data[i])
}

// SetupVertexArray decodes the attribute loaders of info's vertex range
// into dst as one Float32x4 per attribute and returns the host layout.
// Attributes no loader feeds keep their default value.
func (r *Rasterizer) SetupVertexArray(dst []byte, info VertexArrayInfo) (gpucore.VertexLayout, bool) {
	p := &r.st.Regs.Pipeline
	va := &p.VertexAttributes
	n := numAttributes(va)
	stride := uint32(n) * 16

	layout := gpucore.VertexLayout{Stride: stride, Mask: uint16(1)<<n - 1}
	for i := 0; i < n; i++ {
		layout.Formats[i] = gputypes.VertexFormatFloat32x4
		layout.Offsets[i] = uint32(i) * 16
	}
	if n == 0 {
		return layout, true
	}

	count := info.Count()
	for v := uint32(0); v < count; v++ {
		row := dst[v*stride:]
		for i := 0; i < n; i++ {
			putVec4(row[i*16:], p.DefaultAttributes[i])
		}
	}

	for li := range va.Loaders {
		l := &va.Loaders[li]
		if l.ComponentCount == 0 || l.ByteCount == 0 {
			continue
		}
		addr := va.BaseAddress + l.DataOffset + info.Min*l.ByteCount
		size := l.ByteCount * count
		r.cache.FlushRegion(addr, size, nil)
		src := memory.Read(r.mem, addr, size)
		if src == nil {
			Logger().Warn("pica: attribute data not mapped", "loader", li, "addr", addr, "size", size)
			return layout, false
		}
		for v := uint32(0); v < count; v++ {
			decodeLoader(dst[v*stride:], src[v*l.ByteCount:(v+1)*l.ByteCount], l, va, n)
		}
	}
	return layout, true
}

// decodeLoader unpacks one vertex of loader l into row. Components below 12
// are attributes aligned to their element size; 12..15 are 4 to 16 bytes
// of padding.
func decodeLoader(row, src []byte, l *regs.AttributeLoader, va *regs.VertexAttributes, n int) {
	var offset uint32
	for c := uint32(0); c < l.ComponentCount && c < 12; c++ {
		attr := uint32(l.Components[c])
		if attr >= 12 {
			offset = uint32(alignUp(uint64(offset), 4))
			offset += (attr - 11) * 4
			continue
		}
		f := va.Formats[attr]
		if f.Size == 0 {
			continue
		}
		elem := f.Type.ElementSize()
		offset = uint32(alignUp(uint64(offset), uint64(elem)))
		size := min(f.Size, 4)
		if int(attr) < n && offset+elem*size <= uint32(len(src)) {
			out := [4]float32{0, 0, 0, 1}
			for k := uint32(0); k < size; k++ {
				out[k] = readElement(src[offset+k*elem:], f.Type)
			}
			putVec4(row[attr*16:], out)
		}
		offset += elem * f.Size
	}
}

func readElement(b []byte, t regs.AttributeType) float32 {
	switch t {
	case regs.AttribByte:
		return float32(int8(b[0]))
	case regs.AttribUByte:
		return float32(b[0])
	case regs.AttribShort:
		return float32(int16(binary.LittleEndian.Uint16(b)))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putVec4(dst []byte, v [4]float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

// readIndices returns the batch indices widened to 16 bits. Non-indexed
// batches get the sequence 0..n-1 relative to the streamed range.
func (r *Rasterizer) readIndices(indexed bool, info VertexArrayInfo) ([]uint16, bool) {
	p := &r.st.Regs.Pipeline
	out := make([]uint16, p.NumVertices)
	if !indexed {
		for i := range out {
			out[i] = uint16(i)
		}
		return out, true
	}
	addr := p.VertexAttributes.BaseAddress + p.IndexOffset
	size := p.NumVertices
	if p.IndexFormat16 {
		size *= 2
	}
	data := memory.Read(r.mem, addr, size)
	if data == nil {
		return nil, false
	}
	for i := range out {
		out[i] = uint16(indexAt(data, uint32(i), p.IndexFormat16))
	}
	return out, true
}

// fanToList expands a triangle fan into a triangle list.
func fanToList(fan []uint16) []uint16 {
	if len(fan) < 3 {
		return nil
	}
	list := make([]uint16, 0, 3*(len(fan)-2))
	for i := 1; i+1 < len(fan); i++ {
		list = append(list, fan[0], fan[i], fan[i+1])
	}
	return list
}
