package shader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/golang/snappy"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/pica/gpucore"
)

// Disk cache files hold a header followed by entries until EOF. Each entry
// is a kind byte, a 64-bit config hash, a 32-bit length and a snappy block
// of SPIR-V bytes.
const (
	diskMagic     = "PCSC"
	diskVersion   = 1
	diskExt       = ".pcs"
	maxEntryBytes = 16 << 20
)

// Kind is the pipeline stage of a cached program.
type Kind uint8

const (
	KindVertex Kind = iota
	KindFragment
)

func (k Kind) stage() gpucore.ShaderStage {
	if k == KindFragment {
		return gpucore.StageFragment
	}
	return gpucore.StageVertex
}

func (k Kind) String() string {
	if k == KindFragment {
		return "fragment"
	}
	return "vertex"
}

// LoadStage is a step of the disk cache warm-up.
type LoadStage uint8

const (
	StagePrepare LoadStage = iota
	StageDecompress
	StageBuild
	StageComplete
)

func (s LoadStage) String() string {
	switch s {
	case StagePrepare:
		return "prepare"
	case StageDecompress:
		return "decompress"
	case StageBuild:
		return "build"
	}
	return "complete"
}

// ProgressFunc receives disk cache load progress. Calls are serialized.
type ProgressFunc func(stage LoadStage, done, total int)

type diskKey struct {
	kind Kind
	hash uint64
}

type diskEntry struct {
	key  diskKey
	data []byte
}

type diskFile struct {
	mu   sync.Mutex
	path string
}

// DiskPath returns the cache file of a program id inside dir.
func DiskPath(dir string, programID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%016X%s", programID, diskExt))
}

// read returns every complete entry. A truncated tail is dropped.
func (d *diskFile) read() ([]diskEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(d.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", ErrCorruptCache, d.path, err)
	}
	if string(hdr[:4]) != diskMagic || binary.LittleEndian.Uint32(hdr[4:]) != diskVersion {
		return nil, fmt.Errorf("%w: %s: bad header", ErrCorruptCache, d.path)
	}

	var entries []diskEntry
	var head [13]byte
	for {
		if _, err := io.ReadFull(r, head[:]); err != nil {
			if err != io.EOF {
				slogger().Warn("shader: truncated disk cache", "path", d.path, "entries", len(entries))
			}
			return entries, nil
		}
		n := binary.LittleEndian.Uint32(head[9:])
		if n > maxEntryBytes {
			return entries, fmt.Errorf("%w: %s: entry of %d bytes", ErrCorruptCache, d.path, n)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			slogger().Warn("shader: truncated disk cache", "path", d.path, "entries", len(entries))
			return entries, nil
		}
		entries = append(entries, diskEntry{
			key:  diskKey{kind: Kind(head[0]), hash: binary.LittleEndian.Uint64(head[1:])},
			data: data,
		})
	}
}

// append stores one compiled program.
func (d *diskFile) append(key diskKey, words []uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("shader: disk cache dir: %w", err)
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("shader: open disk cache: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("shader: stat disk cache: %w", err)
	}

	packed := snappy.Encode(nil, wordsToBytes(words))
	buf := make([]byte, 0, 8+13+len(packed))
	if st.Size() == 0 {
		buf = append(buf, diskMagic...)
		buf = binary.LittleEndian.AppendUint32(buf, diskVersion)
	}
	buf = append(buf, byte(key.kind))
	buf = binary.LittleEndian.AppendUint64(buf, key.hash)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(packed)))
	buf = append(buf, packed...)
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("shader: write disk cache: %w", err)
	}
	return f.Close()
}

func decodeEntry(data []byte) ([]uint32, error) {
	b, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d byte program", ErrCorruptCache, len(b))
	}
	return bytesToWords(b), nil
}

// LoadDiskCache reads the program's disk cache and creates a shader module
// for every entry. Decompression runs in parallel. The cancel flag is
// checked between units; once it is set the load stops, destroys what it
// built and returns ErrCancelled without publishing anything. A missing
// cache file is not an error.
func (m *Manager) LoadDiskCache(cancel *atomic.Bool, cb ProgressFunc) error {
	var cbMu sync.Mutex
	report := func(stage LoadStage, done, total int) {
		if cb == nil {
			return
		}
		cbMu.Lock()
		defer cbMu.Unlock()
		cb(stage, done, total)
	}
	cancelled := func() bool { return cancel != nil && cancel.Load() }

	report(StagePrepare, 0, 0)
	if m.disk == nil {
		report(StageComplete, 0, 0)
		return nil
	}
	entries, err := m.disk.read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report(StageComplete, 0, 0)
			return nil
		}
		if len(entries) == 0 {
			return err
		}
		slogger().Warn("shader: partial disk cache", "program", m.programID, "err", err)
	}

	total := len(entries)
	report(StageDecompress, 0, total)
	words := make([][]uint32, total)
	var done atomic.Int32
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range entries {
		g.Go(func() error {
			if cancelled() {
				return ErrCancelled
			}
			w, err := decodeEntry(entries[i].data)
			if err != nil {
				slogger().Warn("shader: skipping disk cache entry", "kind", entries[i].key.kind, "err", err)
			}
			words[i] = w
			report(StageDecompress, int(done.Add(1)), total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report(StageBuild, 0, total)
	built := make(map[diskKey]gpucore.ShaderModuleID, total)
	destroy := func() {
		for _, id := range built {
			m.dev.DestroyShaderModule(id)
		}
	}
	for i, e := range entries {
		if cancelled() {
			destroy()
			return ErrCancelled
		}
		if words[i] == nil {
			continue
		}
		if _, dup := built[e.key]; dup {
			continue
		}
		id, err := m.dev.CreateShaderModule(e.key.kind.stage(), words[i], fmt.Sprintf("disk %s %016x", e.key.kind, e.key.hash))
		if err != nil {
			slogger().Warn("shader: disk cache module", "hash", e.key.hash, "err", err)
			continue
		}
		built[e.key] = id
		report(StageBuild, i+1, total)
	}
	if cancelled() {
		destroy()
		return ErrCancelled
	}

	m.mu.Lock()
	for k, id := range built {
		if _, ok := m.precompiled[k]; ok {
			m.dev.DestroyShaderModule(id)
			continue
		}
		m.precompiled[k] = id
	}
	m.stats.Loaded += len(built)
	m.mu.Unlock()

	slogger().Info("shader: disk cache loaded", "program", fmt.Sprintf("%016X", m.programID), "programs", len(built))
	report(StageComplete, total, total)
	return nil
}
