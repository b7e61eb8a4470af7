package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

type slogLogger struct {
	h slog.Handler
	// maxLinks caps error_links; 0 leaves them out
	maxLinks int
}

func newSlog(opts Options) (*slogLogger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.StacktraceLevel == 0 {
		opts.StacktraceLevel = slog.LevelError
	}

	ho := &slog.HandlerOptions{Level: opts.Level, AddSource: true, ReplaceAttr: redactAttr}
	var h slog.Handler
	if opts.JsonFormat {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	h = stackHandler{next: traceHandler{next: h}, level: opts.StacktraceLevel}

	base := []slog.Attr{slog.String("app", opts.App)}
	for _, a := range []slog.Attr{
		slog.String("version", opts.Version),
		slog.String("commit", opts.Commit),
		slog.String("build_id", opts.BuildId),
	} {
		if a.Value.String() != "" {
			base = append(base, a)
		}
	}

	l := &slogLogger{h: h.WithAttrs(base)}
	if opts.IncludeErrorLinks {
		l.maxLinks = opts.MaxErrorLinks
		if l.maxLinks <= 0 {
			l.maxLinks = 8
		}
	}
	return l, nil
}

// With returns a child logger. The parent is unchanged.
func (s *slogLogger) With(kv ...any) Logger {
	attrs := toAttrs(kv)
	if len(attrs) == 0 {
		return s
	}
	return &slogLogger{h: s.h.WithAttrs(attrs), maxLinks: s.maxLinks}
}

func (s *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelDebug, msg, kv)
}

func (s *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelInfo, msg, kv)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelWarn, msg, kv)
}

func (s *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		kv = append(kv, errorAttrs(err, s.maxLinks)...)
	}
	s.log(ctx, slog.LevelError, msg, kv)
}

func (s *slogLogger) Sync() error { return nil }

// log must be called directly from the exported level methods: the source
// location is taken three frames up.
func (s *slogLogger) log(ctx context.Context, lvl slog.Level, msg string, kv []any) {
	if !s.h.Enabled(ctx, lvl) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])
	r.AddAttrs(toAttrs(kv)...)
	_ = s.h.Handle(ctx, r)
}

// toAttrs pairs up kv. Non-string keys and a trailing odd value are dropped.
func toAttrs(kv []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			attrs = append(attrs, slog.Any(k, kv[i+1]))
		}
	}
	return attrs
}
