package deferred

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/shader"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// loggerSetter receives the logger whenever SetLogger is called.
type loggerSetter func(*slog.Logger)

// loggerSetters are the sub-packages that keep their own logger.
var loggerSetters = []loggerSetter{
	backend.SetLogger,
	shader.SetLogger,
}

// SetLogger configures the logger for deferred, the graphics backends and
// the shader compiler. By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore silence.
//
// Log levels used:
//   - [slog.LevelDebug]: per-frame details (framebuffer rebuilds, draw counts)
//   - [slog.LevelInfo]: lifecycle events (backend selected, renderer ready)
//   - [slog.LevelWarn]: non-fatal issues (software fallback)
//
// Example:
//
//	deferred.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	for _, set := range loggerSetters {
		set(l)
	}
}

// Logger returns the current logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
