// Package gpucore defines the host GPU contract used by the pica rasterizer.
//
// The [Device] interface abstracts over host graphics backends so that the
// register translation, resource cache and shader management are written
// once:
//
//	               +-----------------+
//	               |   pica (root)   |
//	               |   Rasterizer    |
//	               +--------+--------+
//	                        |
//	               +--------v--------+
//	               | gpucore.Device  |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| backend/native  |          | internal/gputest|
//	|  (hal.Device)   |          |   (recorder)    |
//	+-----------------+          +-----------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [TextureID],
// [SamplerID], [ShaderModuleID]). Devices track the mapping between IDs and
// backend resources.
//
// # State Slots
//
// Pipeline state is set one slot at a time (blend, depth/stencil, raster,
// viewport, scissor, bindings). The rasterizer mirrors the slots and only
// pushes the ones that changed, so every setter call is a real state
// transition.
package gpucore
