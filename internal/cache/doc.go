// Package cache provides a generic cost-bounded LRU cache.
//
// Entries carry a cost (for decoded images, their size in bytes) and the
// cache evicts least recently used entries once the summed cost exceeds the
// limit:
//
//	c := cache.New[uint64, *Image](64 << 20)
//	c.Set(hash, img, int64(len(img.Pix)))
//	img, ok := c.Get(hash)
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package cache
