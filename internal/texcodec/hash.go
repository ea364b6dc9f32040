package texcodec

import "hash/fnv"

// Hash returns the content hash of guest texture bytes. Custom texture packs
// are keyed by this value.
func Hash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}
