package pica

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/pica/internal/rescache"
	"github.com/gogpu/pica/internal/shader"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// devices holds the live devices that accept a logger.
var (
	devicesMu sync.Mutex
	devices   = make(map[loggerSetter]struct{})
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for pica and all its sub-packages.
// By default, pica produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by pica:
//   - [slog.LevelDebug]: per-draw diagnostics (uploads, ring wraps, program selection)
//   - [slog.LevelInfo]: lifecycle events (title switch, disk cache loaded)
//   - [slog.LevelWarn]: non-fatal issues (software fallback, capacity, shader compile)
//
// Example:
//
//	pica.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	rescache.SetLogger(l)
	shader.SetLogger(l)

	devicesMu.Lock()
	defer devicesMu.Unlock()
	for d := range devices {
		d.SetLogger(l)
	}
}

// Logger returns the current logger used by pica.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// trackLogger hands the current logger to dev and keeps it updated until
// untrackLogger.
func trackLogger(dev any) {
	ls, ok := dev.(loggerSetter)
	if !ok {
		return
	}
	ls.SetLogger(Logger())
	devicesMu.Lock()
	devices[ls] = struct{}{}
	devicesMu.Unlock()
}

func untrackLogger(dev any) {
	ls, ok := dev.(loggerSetter)
	if !ok {
		return
	}
	devicesMu.Lock()
	delete(devices, ls)
	devicesMu.Unlock()
}
