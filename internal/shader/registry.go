package shader

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/gogpu/pica/gpucore"
)

// appletHigh is the upper program id word shared by system applets.
const appletHigh = 0x00040030

// IsApplet reports whether a program id belongs to a system applet.
func IsApplet(programID uint64) bool { return uint32(programID>>32) == appletHigh }

// Registry holds one Manager per title. Index 0 is the default manager
// and is never evicted by a title switch.
type Registry struct {
	dev      gpucore.Device
	opts     Options
	managers []*Manager
	current  *Manager
}

// NewRegistry returns an empty registry.
func NewRegistry(dev gpucore.Device, opts Options) *Registry {
	return &Registry{dev: dev, opts: opts}
}

// Current returns the active manager, or nil before LoadDefault.
func (r *Registry) Current() *Manager { return r.current }

// ProgramIDs lists the resident managers in order.
func (r *Registry) ProgramIDs() []uint64 {
	ids := make([]uint64, len(r.managers))
	for i, m := range r.managers {
		ids[i] = m.programID
	}
	return ids
}

// Reset drops every manager and installs an empty manager for programID
// as index 0.
func (r *Registry) Reset(programID uint64) *Manager {
	r.Destroy()
	m := NewManager(r.dev, programID, r.opts)
	r.managers = []*Manager{m}
	r.current = m
	return m
}

// LoadDefault resets the registry to programID and loads its disk cache.
func (r *Registry) LoadDefault(programID uint64, cancel *atomic.Bool, cb ProgressFunc) error {
	m := r.Reset(programID)
	if err := m.LoadDiskCache(cancel, cb); err != nil {
		return fmt.Errorf("shader: load default %016X: %w", programID, err)
	}
	return nil
}

// SwitchDiskResources makes titleID the active manager, creating and
// loading it when absent. Leaving an applet drops the other applets;
// entering a title drops everything except index 0 and the new manager.
func (r *Registry) SwitchDiskResources(titleID uint64, cb ProgressFunc) error {
	if r.current != nil && r.current.programID == titleID {
		return nil
	}

	idx := slices.IndexFunc(r.managers, func(m *Manager) bool { return m.programID == titleID })
	var loadErr error
	if idx < 0 {
		m := NewManager(r.dev, titleID, r.opts)
		r.managers = append(r.managers, m)
		idx = len(r.managers) - 1
		if err := m.LoadDiskCache(nil, cb); err != nil {
			loadErr = fmt.Errorf("shader: load %016X: %w", titleID, err)
		}
	}

	prevApplet := r.current != nil && IsApplet(r.current.programID)
	next := r.managers[idx]
	r.current = next

	if prevApplet {
		r.purge(func(m *Manager) bool { return IsApplet(m.programID) })
	}
	if !IsApplet(titleID) {
		r.purge(func(*Manager) bool { return true })
	}
	slogger().Info("shader: switched title", "program", fmt.Sprintf("%016X", titleID), "resident", len(r.managers))
	return loadErr
}

// purge destroys the managers selected by drop, keeping index 0 and the
// current manager.
func (r *Registry) purge(drop func(*Manager) bool) {
	kept := r.managers[:0]
	for i, m := range r.managers {
		if i == 0 || m == r.current || !drop(m) {
			kept = append(kept, m)
			continue
		}
		m.Destroy()
	}
	clear(r.managers[len(kept):])
	r.managers = kept
}

// Destroy releases every manager.
func (r *Registry) Destroy() {
	for _, m := range r.managers {
		m.Destroy()
	}
	r.managers = nil
	r.current = nil
}
