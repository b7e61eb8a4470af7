package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger takes the request context first so trace ids and the request
// logger travel with every line.
type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

type Options struct {
	App     string
	Version string
	Commit  string
	BuildId string

	Level slog.Level
	// StacktraceLevel and above get a "stack" attribute. Defaults to error.
	StacktraceLevel slog.Level

	JsonFormat bool

	// IncludeErrorLinks adds an error_links attribute with one entry per
	// wrap, capped at MaxErrorLinks (default 8).
	IncludeErrorLinks bool
	MaxErrorLinks     int

	// Writer defaults to stdout.
	Writer io.Writer
}

func New(opts Options) (Logger, error) { return newSlog(opts) }

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func ParseLevel(s string) (slog.Level, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return 0, fmt.Errorf("unknown log level %q (valid levels are debug|info|warn|error)", s)
}
