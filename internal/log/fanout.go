package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// FanoutHandler sends every record to several handlers.
// Each handler keeps its own level, so the console can stay quiet while the
// run log records every fetch.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler returns a handler that duplicates records to handlers.
// Nil handlers are ignored.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	hs := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return &FanoutHandler{handlers: hs}
}

// Enabled reports whether any handler handles records at the given level.
func (f *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a copy of the record to every handler enabled for its level.
func (f *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns a new FanoutHandler whose handlers all carry attrs.
func (f *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: hs}
}

// WithGroup returns a new FanoutHandler whose handlers all open group name.
func (f *FanoutHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &FanoutHandler{handlers: hs}
}

// NewRunLogger creates the logger used during a mirror run.
// Console output is at Warn (Debug when verbose). The run log records at
// Info (Debug when verbose) so every fetch, skip and error event is kept.
// runLog may be nil, in which case only the console is written.
func NewRunLogger(console, runLog io.Writer, verbose bool) *slog.Logger {
	consoleLevel := slog.LevelWarn
	fileLevel := slog.LevelInfo
	if verbose {
		consoleLevel = slog.LevelDebug
		fileLevel = slog.LevelDebug
	}

	var fileHandler slog.Handler
	if runLog != nil {
		fileHandler = slog.NewTextHandler(runLog, &slog.HandlerOptions{Level: fileLevel})
	}

	fanout := NewFanoutHandler(
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel}),
		fileHandler,
	)
	return slog.New(NewSecureHandler(fanout))
}
