// Package regs models the guest GPU register state consumed by the rasterizer.
//
// The register block is written by the collaborator that emulates GPU
// register I/O and read by the rasterizer at draw time. Fields are decoded
// into typed values; raw bit layouts are the writer's concern.
//
// A [State] bundles the register [Block] with the lookup tables, the vertex
// shader setup and the dirty flags that the rasterizer clears after it
// consumes them:
//
//	st := regs.NewState()
//	st.Regs.Pipeline.Topology = regs.TopologyList
//	st.SetFogLUT(table) // marks Dirty.FogLUT
package regs
