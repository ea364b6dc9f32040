// Package custom loads replacement textures from a directory pack.
//
// A pack is a directory tree of image files named
//
//	tex1_{width}x{height}_{hash:016X}_{format}.{png,webp,bmp}
//
// where hash is the content hash of the guest texture data. Decoded images
// are rescaled to the requested size and kept in a cost-bounded LRU.
package custom

import (
	"errors"
	"fmt"
	"image"
	_ "image/png" // register decoder
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/gogpu/pica/internal/cache"
)

// ErrNotFound is returned by Load for hashes the pack does not replace.
var ErrNotFound = errors.New("custom: texture not in pack")

// DefaultBudget is the decoded image budget in bytes.
const DefaultBudget = 256 << 20

// Image is a decoded replacement in tightly packed RGBA8.
type Image struct {
	Width  uint32
	Height uint32
	Pix    []byte
}

// Entry describes one replacement file.
type Entry struct {
	Path   string
	Width  uint32
	Height uint32
	Hash   uint64
	Format uint32
}

type key struct {
	hash uint64
	w, h uint32
}

// Pack is an indexed texture pack. It is safe for concurrent use.
type Pack struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
	images  *cache.Cache[key, *Image]
}

// ParseName extracts the texture description from a pack file name.
func ParseName(name string) (Entry, bool) {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	switch ext {
	case ".png", ".webp", ".bmp":
	default:
		return Entry{}, false
	}
	var e Entry
	n, err := fmt.Sscanf(strings.TrimSuffix(base, filepath.Ext(base)), "tex1_%dx%d_%016X_%d",
		&e.Width, &e.Height, &e.Hash, &e.Format)
	if err != nil || n != 4 {
		return Entry{}, false
	}
	e.Path = name
	return e, true
}

// Open indexes every replacement file under dir.
func Open(dir string, budget int64) (*Pack, error) {
	p := New(budget)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if e, ok := ParseName(path); ok {
			p.Add(e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("custom: index %s: %w", dir, err)
	}
	return p, nil
}

// New returns an empty pack.
func New(budget int64) *Pack {
	return &Pack{
		entries: make(map[uint64]Entry),
		images:  cache.New[key, *Image](budget),
	}
}

// Add registers a replacement. A later entry for the same hash wins.
func (p *Pack) Add(e Entry) {
	p.mu.Lock()
	p.entries[e.Hash] = e
	p.mu.Unlock()
}

// Len returns the number of indexed replacements.
func (p *Pack) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Has reports whether hash has a replacement.
func (p *Pack) Has(hash uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[hash]
	return ok
}

// Stats returns the decoded image cache statistics.
func (p *Pack) Stats() cache.Stats { return p.images.Stats() }

// Load returns the replacement for hash scaled to w x h.
func (p *Pack) Load(hash uint64, w, h uint32) (*Image, error) {
	p.mu.RLock()
	e, ok := p.entries[hash]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return p.images.GetOrCreate(key{hash, w, h}, func() (*Image, int64, error) {
		img, err := decodeFile(e.Path)
		if err != nil {
			return nil, 0, err
		}
		out := Resize(img, w, h)
		return out, int64(len(out.Pix)), nil
	})
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("custom: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("custom: decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Resize converts src to RGBA8 of size w x h with bilinear filtering.
func Resize(src image.Image, w, h uint32) *Image {
	dst := image.NewNRGBA(image.Rect(0, 0, int(w), int(h)))
	if src.Bounds().Dx() == int(w) && src.Bounds().Dy() == int(h) {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	return &Image{Width: w, Height: h, Pix: dst.Pix}
}
