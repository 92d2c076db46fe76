package main

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	logglobal "go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
)

// newLogger builds the ambient logging stack (SPEC_FULL.md §5's "domain
// expansion"): a plain [slog.TextHandler] to stderr is the interface every
// component logs through, fanned out to an [otelslog] bridge handler so
// logs can be shipped via OTLP without the core ever depending on a
// specific exporter. No OTLP SDK/exporter is wired (DESIGN.md's dropped-
// dependency ledger) -- the global logger provider defaults to a no-op,
// so the otelslog handler is a documented no-op today, matching the
// teacher's "otel is additive, slog is the interface" posture
// (rpm/packagescanner.go logs through slog unconditionally and only
// optionally touches otel's tracing APIs).
func newLogger(quiet, verbose bool) *slog.Logger {
	logglobal.SetLoggerProvider(lognoop.NewLoggerProvider())

	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelWarn
	case verbose:
		level = slog.LevelDebug
	}

	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	bridge := otelslog.NewHandler("github.com/rpmrepo/repomd/cmd/createrepo")
	return slog.New(fanoutHandler{text, bridge})
}

// fanoutHandler sends every record to both handlers it wraps. Grounded on
// the ambient-logging posture above: the text handler is authoritative
// for operator-visible output, the otel handler is a secondary sink that
// costs nothing to keep wired when no OTLP pipeline is configured.
type fanoutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f.primary.Enabled(ctx, level) || f.secondary.Enabled(ctx, level)
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if f.primary.Enabled(ctx, r.Level) {
		err = f.primary.Handle(ctx, r.Clone())
	}
	if f.secondary.Enabled(ctx, r.Level) {
		if serr := f.secondary.Handle(ctx, r.Clone()); err == nil {
			err = serr
		}
	}
	return err
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanoutHandler{f.primary.WithAttrs(attrs), f.secondary.WithAttrs(attrs)}
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	return fanoutHandler{f.primary.WithGroup(name), f.secondary.WithGroup(name)}
}
