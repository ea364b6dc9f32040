// Package pica renders the command stream of a PICA200-class fixed
// function GPU on a modern host graphics device.
//
// # Overview
//
// A Rasterizer sits between the register emulation of the guest GPU and a
// gpucore.Device. The guest pushes triangles either as already transformed
// vertices (AddTriangle, DrawTriangles) or as raw vertex arrays that the
// host transforms (AccelerateDrawBatch). Each draw mirrors the guest
// pipeline state onto the device, binds the cached surfaces for the
// current framebuffer and textures, selects generated shaders, streams
// uniforms and lookup tables, and issues the host draw.
//
// # Quick Start
//
//	mem := memory.NewDefault()
//	st := regs.NewState()
//	r, err := pica.New(mem, dev, st, pica.WithResolutionScale(2))
//	if err != nil {
//		return err
//	}
//	defer r.Destroy()
//
//	// after the guest wrote registers and vertex data
//	if !r.AccelerateDrawBatch(false) {
//		// fall back to CPU vertex processing
//	}
//
// # Memory coherence
//
// Guest memory and cached host surfaces are kept coherent with the memory
// hooks: FlushRegion before the guest reads, InvalidateRegion after it
// writes, and FlushAndInvalidateRegion for DMA that does both.
//
// # Coordinate System
//
// Host texture row 0 holds guest row 0. The vertex shader negates clip
// space y, so culling is mirrored on the host.
//
// # Configuration
//
// Options can be passed directly or decoded from a TOML file with
// LoadConfig.
package pica

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
