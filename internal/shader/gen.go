package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/pica/gpucore"
)

// writer accumulates generated WGSL.
type writer struct {
	b      strings.Builder
	indent int
}

func (w *writer) line(format string, args ...any) {
	for range w.indent {
		w.b.WriteString("    ")
	}
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *writer) raw(s string) { w.b.WriteString(s) }

func (w *writer) open(format string, args ...any) {
	w.line(format, args...)
	w.indent++
}

func (w *writer) close() {
	w.indent--
	w.line("}")
}

func (w *writer) String() string { return w.b.String() }

// writeVaryings declares the interface between the vertex and fragment stages.
func writeVaryings(w *writer, name string) {
	w.open("struct %s {", name)
	w.line("@builtin(position) position: vec4<f32>,")
	w.line("@location(0) normquat: vec4<f32>,")
	w.line("@location(1) color: vec4<f32>,")
	w.line("@location(2) tc0: vec2<f32>,")
	w.line("@location(3) tc1: vec2<f32>,")
	w.line("@location(4) tc2: vec2<f32>,")
	w.line("@location(5) tc0_w: f32,")
	w.line("@location(6) view: vec3<f32>,")
	w.line("@location(7) clip: f32,")
	w.close()
}

func writeUniformBlock(w *writer, typ, name string, slot gpucore.BufferSlot, slots int) {
	w.open("struct %s {", typ)
	w.line("v: array<vec4<f32>, %d>,", slots)
	w.close()
	w.line("@group(%d) @binding(%d) var<uniform> %s: %s;", gpucore.BindGroupBuffers, slot, name, typ)
}

// uni returns a reference to a uniform slot.
func uni(block string, slot int) string {
	return fmt.Sprintf("%s.v[%d]", block, slot)
}

const components = "xyzw"
