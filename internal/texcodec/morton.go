package texcodec

// TileSize is the edge length of a guest tile in pixels.
const TileSize = 8

// mortonInterleave returns the Morton index of (x, y) inside an 8x8 tile.
func mortonInterleave(x, y uint32) uint32 {
	const (
		xlut = "\x00\x01\x04\x05\x10\x11\x14\x15"
		ylut = "\x00\x02\x08\x0a\x20\x22\x28\x2a"
	)
	return uint32(xlut[x&7]) | uint32(ylut[y&7])
}

// PixelIndex returns the storage index of pixel (x, y) in an image of the
// given width. Multiply by bits per pixel to get the bit offset.
func PixelIndex(x, y, width uint32, tiled bool) uint32 {
	if !tiled {
		return y*width + x
	}
	tileX, tileY := x/TileSize, y/TileSize
	tilesPerRow := (width + TileSize - 1) / TileSize
	tile := tileY*tilesPerRow + tileX
	return tile*TileSize*TileSize + mortonInterleave(x, y)
}
