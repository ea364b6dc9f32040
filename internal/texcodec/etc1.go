package texcodec

import "encoding/binary"

var etc1Modifiers = [8][2]int32{
	{2, 8}, {5, 17}, {9, 29}, {13, 42},
	{18, 60}, {24, 80}, {33, 106}, {47, 183},
}

// decodeETC1 decodes an ETC1 or ETC1A4 image. Each 8x8 tile holds four 4x4
// blocks in Z order; ETC1A4 blocks are preceded by 64 bits of 4-bit alpha.
func decodeETC1(src []byte, w, h uint32, hasAlpha bool) []byte {
	out := make([]byte, w*h*4)
	blockSize := uint32(8)
	if hasAlpha {
		blockSize = 16
	}
	tilesPerRow := (w + TileSize - 1) / TileSize
	tilesPerCol := (h + TileSize - 1) / TileSize
	off := uint32(0)
	for ty := uint32(0); ty < tilesPerCol; ty++ {
		for tx := uint32(0); tx < tilesPerRow; tx++ {
			for b := uint32(0); b < 4; b++ {
				if off+blockSize > uint32(len(src)) {
					return out
				}
				alpha := ^uint64(0)
				p := src[off:]
				if hasAlpha {
					alpha = binary.LittleEndian.Uint64(p)
					p = p[8:]
				}
				block := binary.LittleEndian.Uint64(p)
				bx := tx*TileSize + (b&1)*4
				by := ty*TileSize + (b>>1)*4
				decodeETC1Block(out, w, h, bx, by, block, alpha)
				off += blockSize
			}
		}
	}
	return out
}

func decodeETC1Block(out []byte, w, h, bx, by uint32, block, alpha uint64) {
	hi := uint32(block >> 32)
	flip := hi&1 != 0
	diff := hi&2 != 0
	table := [2]uint32{hi >> 5 & 7, hi >> 2 & 7}

	var base [2][3]int32
	if diff {
		for c, shift := range [3]uint32{27, 19, 11} {
			v := int32(hi >> shift & 0x1f)
			d := int32(hi>>(shift-3)&7) << 29 >> 29
			v2 := v + d
			base[0][c] = v<<3 | v>>2
			base[1][c] = (v2&0x1f)<<3 | (v2&0x1f)>>2
		}
	} else {
		for c, shift := range [3]uint32{28, 20, 12} {
			v1 := int32(hi >> shift & 0xf)
			v2 := int32(hi >> (shift - 4) & 0xf)
			base[0][c] = v1<<4 | v1
			base[1][c] = v2<<4 | v2
		}
	}

	lo := uint32(block)
	for x := uint32(0); x < 4; x++ {
		for y := uint32(0); y < 4; y++ {
			px, py := bx+x, by+y
			if px >= w || py >= h {
				continue
			}
			i := x*4 + y
			sub := 0
			if (flip && y >= 2) || (!flip && x >= 2) {
				sub = 1
			}
			msb := lo >> (16 + i) & 1
			lsb := lo >> i & 1
			mod := etc1Modifiers[table[sub]][lsb]
			if msb != 0 {
				mod = -mod
			}
			o := (py*w + px) * 4
			for c := 0; c < 3; c++ {
				out[o+uint32(c)] = clamp8(base[sub][c] + mod)
			}
			out[o+3] = expand4(uint8(alpha >> (4 * i) & 0xf))
		}
	}
}

func clamp8(v int32) uint8 {
	return uint8(min(max(v, 0), 255))
}
