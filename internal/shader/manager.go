package shader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/pica/gpucore"
	"github.com/gogpu/pica/internal/state"
	"github.com/gogpu/pica/regs"
)

// Options configure a Manager.
type Options struct {
	// CacheDir enables the disk cache when non-empty.
	CacheDir string
	// Compiler defaults to Compile.
	Compiler Compiler
}

// Stats count program resolutions.
type Stats struct {
	Compiled  int
	DiskHits  int
	Loaded    int
	Failures  int
	Fallbacks int
}

// Manager selects and compiles the shader programs of one title.
//
// Use* calls run on the render thread. LoadDiskCache may run concurrently
// with them; it publishes its modules under the manager lock.
type Manager struct {
	mu        sync.Mutex
	dev       gpucore.Device
	compile   Compiler
	programID uint64
	disk      *diskFile

	vs          map[VSConfig]gpucore.ShaderModuleID
	fs          map[FSConfig]gpucore.ShaderModuleID
	trivial     [2]gpucore.ShaderModuleID
	passThrough gpucore.ShaderModuleID
	precompiled map[diskKey]gpucore.ShaderModuleID
	failed      map[diskKey]struct{}

	gs      GSKind
	current gpucore.Programs
	stats   Stats
}

// NewManager returns an empty manager for programID.
func NewManager(dev gpucore.Device, programID uint64, opts Options) *Manager {
	m := &Manager{
		dev:         dev,
		compile:     opts.Compiler,
		programID:   programID,
		vs:          make(map[VSConfig]gpucore.ShaderModuleID),
		fs:          make(map[FSConfig]gpucore.ShaderModuleID),
		precompiled: make(map[diskKey]gpucore.ShaderModuleID),
		failed:      make(map[diskKey]struct{}),
	}
	if m.compile == nil {
		m.compile = Compile
	}
	if opts.CacheDir != "" {
		m.disk = &diskFile{path: DiskPath(opts.CacheDir, programID)}
	}
	return m
}

// ProgramID returns the title served by the manager.
func (m *Manager) ProgramID() uint64 { return m.programID }

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Programs returns the current selection.
func (m *Manager) Programs() gpucore.Programs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ApplyTo stores the current selection in s.
func (m *Manager) ApplyTo(s *state.HostState) {
	s.Programs = m.Programs()
}

// UseFixedGeometryShader selects the quaternion-correcting vertex epilogue
// for the next vertex shader selection. Without fragment lighting the
// quaternion is unused and the pass-through epilogue is kept.
func (m *Manager) UseFixedGeometryShader(r *regs.Block) {
	m.mu.Lock()
	m.gs = GSTrivial
	if !r.Lighting.Disable {
		m.gs = GSFixed
	}
	m.mu.Unlock()
}

// UseTrivialGeometryShader selects the pass-through vertex epilogue.
func (m *Manager) UseTrivialGeometryShader() {
	m.mu.Lock()
	m.gs = GSTrivial
	m.mu.Unlock()
}

// UseTrivialVertexShader selects the shader for CPU-processed vertices.
func (m *Manager) UseTrivialVertexShader() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.trivial[m.gs]
	if id == gpucore.InvalidID {
		var err error
		id, err = m.build(gpucore.StageVertex, "trivial vs "+m.gs.String(), func() (string, error) {
			return GenerateTrivialVertexShader(m.gs), nil
		})
		if err != nil {
			return err
		}
		m.trivial[m.gs] = id
	}
	m.current.Vertex = id
	return nil
}

// UseProgrammableVertexShader selects the translated guest vertex program
// with the current geometry epilogue. It reports false when the program
// cannot be translated; the caller then processes vertices on the CPU.
func (m *Manager) UseProgrammableVertexShader(r *regs.Block, setup *regs.VSSetup) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := VSConfigFromRegs(r, setup, m.gs)
	if !ok {
		return false
	}
	if id, ok := m.vs[cfg]; ok {
		m.current.Vertex = id
		return true
	}
	key := diskKey{kind: KindVertex, hash: cfg.Hash()}
	id, ok := m.resolve(key, func() (string, error) { return GenerateVertexShader(&cfg, setup) })
	if !ok {
		return false
	}
	m.vs[cfg] = id
	m.current.Vertex = id
	return true
}

// UseFragmentShader selects the fragment program for the current
// registers. On failure the pass-through program is selected and false is
// returned.
func (m *Manager) UseFragmentShader(r *regs.Block, emulateMinMax bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := FSConfigFromRegs(r, emulateMinMax)
	if id, ok := m.fs[cfg]; ok {
		m.current.Fragment = id
		return true
	}
	key := diskKey{kind: KindFragment, hash: cfg.Hash()}
	id, ok := m.resolve(key, func() (string, error) { return GenerateFragmentShader(&cfg), nil })
	if ok {
		m.fs[cfg] = id
		m.current.Fragment = id
		return true
	}

	m.stats.Fallbacks++
	if m.passThrough == gpucore.InvalidID {
		pt := PassThroughFSConfig()
		var err error
		m.passThrough, err = m.build(gpucore.StageFragment, "pass-through fs", func() (string, error) {
			return GenerateFragmentShader(&pt), nil
		})
		if err != nil {
			slogger().Warn("shader: pass-through fragment shader", "err", err)
		}
	}
	m.current.Fragment = m.passThrough
	return false
}

// resolve finds a module by disk key or compiles it and appends it to the
// disk cache. Failures are remembered so that a broken configuration is
// not recompiled on every draw.
func (m *Manager) resolve(key diskKey, gen func() (string, error)) (gpucore.ShaderModuleID, bool) {
	if id, ok := m.precompiled[key]; ok {
		m.stats.DiskHits++
		return id, true
	}
	if _, ok := m.failed[key]; ok {
		return gpucore.InvalidID, false
	}
	label := fmt.Sprintf("%s %016x", key.kind, key.hash)
	src, err := gen()
	if err == nil {
		var words []uint32
		words, err = m.compile(src)
		if err == nil {
			var id gpucore.ShaderModuleID
			id, err = m.dev.CreateShaderModule(key.kind.stage(), words, label)
			if err == nil {
				m.stats.Compiled++
				m.precompiled[key] = id
				if m.disk != nil {
					if derr := m.disk.append(key, words); derr != nil {
						slogger().Warn("shader: disk cache write", "err", derr)
					}
				}
				slogger().Debug("shader: compiled", "program", label)
				return id, true
			}
		}
	}
	m.stats.Failures++
	m.failed[key] = struct{}{}
	if errors.Is(err, ErrUnsupported) {
		slogger().Debug("shader: unsupported program", "program", label, "err", err)
	} else {
		slogger().Warn("shader: program build failed", "program", label, "err", err)
	}
	return gpucore.InvalidID, false
}

func (m *Manager) build(stage gpucore.ShaderStage, label string, gen func() (string, error)) (gpucore.ShaderModuleID, error) {
	src, err := gen()
	if err != nil {
		return gpucore.InvalidID, err
	}
	words, err := m.compile(src)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("shader: %s: %w", label, err)
	}
	id, err := m.dev.CreateShaderModule(stage, words, label)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("shader: %s: %w", label, err)
	}
	m.stats.Compiled++
	return id, nil
}

// Destroy releases every module.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[gpucore.ShaderModuleID]struct{})
	release := func(id gpucore.ShaderModuleID) {
		if id == gpucore.InvalidID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		m.dev.DestroyShaderModule(id)
	}
	for _, id := range m.precompiled {
		release(id)
	}
	for _, id := range m.vs {
		release(id)
	}
	for _, id := range m.fs {
		release(id)
	}
	for _, id := range m.trivial {
		release(id)
	}
	release(m.passThrough)
	clear(m.precompiled)
	clear(m.vs)
	clear(m.fs)
	m.trivial = [2]gpucore.ShaderModuleID{}
	m.passThrough = gpucore.InvalidID
	m.current = gpucore.Programs{}
}

// PassThroughFSConfig returns the config of the fallback fragment program,
// which outputs the interpolated vertex color.
func PassThroughFSConfig() FSConfig {
	cfg := FSConfig{
		AlphaTestFunc: regs.CompareAlways,
		ZBuffer:       true,
		Texture0Type:  regs.TextureDisabled,
		LogicOp:       regs.LogicCopy,
	}
	for i := range cfg.Tev {
		st := &cfg.Tev[i]
		st.ColorSource = [3]regs.TevSource{regs.SrcPrevious, regs.SrcPrevious, regs.SrcPrevious}
		st.AlphaSource = st.ColorSource
	}
	cfg.Tev[0].ColorSource[0] = regs.SrcPrimaryColor
	cfg.Tev[0].AlphaSource[0] = regs.SrcPrimaryColor
	return cfg
}
