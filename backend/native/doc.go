// Package native implements gpucore.Device on the gogpu/wgpu HAL.
//
// Open selects a Vulkan adapter and returns a ready Device. New wraps an
// already opened HAL device, and NewFromProvider accepts any
// gpucontext.DeviceProvider that exposes its HAL objects, such as a gogpu
// window.
//
// Resource IDs are issued by the Device and are valid until destroyed.
// Draws are batched into render passes and submitted on readback, Flush or
// when a recorded command would otherwise observe a later upload.
package native
