// Package rescache keeps host textures in sync with guest memory.
//
// Every framebuffer, depth buffer and texture the guest GPU touches is
// mirrored by a Surface. The cache tracks, per guest byte, whether memory
// or the host texture holds the newest data. InvalidateRegion records
// writes; FlushRegion copies host-newer bytes back before the guest reads
// them, and guest-newer bytes are uploaded before the host samples them.
//
// Display transfers, texture copies and memory fills between cached
// surfaces run on the host when the layout allows it.
package rescache
