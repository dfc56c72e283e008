// Package klog is kestrel's structured logging wrapper: a *slog.Logger
// whose handler stamps the calling worker and fiber identity onto every
// record.
//
// Grounded on gosimruntime/log.go: a JSON slog.Handler wrapped so that
// Handle() adds machine/goroutine attributes before delegating, and a
// package-level flag gating verbosity.
package klog

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
)

var level = flag.String("kestrel-log-level", "WARN", "kestrel scheduler log level (DEBUG, INFO, WARN, ERROR)")

// Identer is implemented by whatever can name the worker/fiber currently
// running on the calling goroutine. It is registered via SetIdent; until
// one is, records carry no worker/fiber identity. klog itself has no
// notion of workers.
type Identer interface {
	WorkerID() (id int, ok bool)
	FiberID() (id int64, ok bool)
}

var ident Identer

// SetIdent installs the accessor used to stamp worker_id/fiber_id onto log
// records. Nothing in kestrel calls it; a nil Identer adds no attributes.
func SetIdent(i Identer) { ident = i }

type identHandler struct {
	inner slog.Handler
}

func (h identHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.inner.Enabled(ctx, lvl)
}

func (h identHandler) Handle(ctx context.Context, r slog.Record) error {
	if ident != nil {
		if id, ok := ident.WorkerID(); ok {
			r.AddAttrs(slog.Int("worker_id", id))
		}
		if id, ok := ident.FiberID(); ok {
			r.AddAttrs(slog.Int64("fiber_id", id))
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h identHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return identHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h identHandler) WithGroup(name string) slog.Handler {
	return identHandler{inner: h.inner.WithGroup(name)}
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return l
}

// New builds a logger writing JSON records to out at the configured level.
func New(out io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(*level)})
	return slog.New(identHandler{inner: handler})
}

// Default is the package-wide logger, writing to stderr. Scheduler and
// Pool code logs through this.
var Default = New(os.Stderr)
