package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/draftsite/internal/xerrors"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer, opts Options) *slogLogger {
	t.Helper()
	opts.Writer = buf
	l, err := newSlog(opts)
	if err != nil {
		t.Fatalf("newSlog: %v", err)
	}
	return l
}

// jsonRecord decodes the last line written to buf.
func jsonRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("decode %q: %v", lines[len(lines)-1], err)
	}
	return rec
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{App: "draftsite", Version: "1.4.0", Writer: &buf, JsonFormat: true})
	if err != nil {
		t.Fatal(err)
	}
	l.Info(context.Background(), "http server listening", "addr", ":8080")

	rec := jsonRecord(t, &buf)
	want := map[string]any{"msg": "http server listening", "app": "draftsite", "version": "1.4.0", "addr": ":8080", "level": "INFO"}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %v", k, rec[k], v)
		}
	}
	if _, ok := rec["commit"]; ok {
		t.Error("empty build attrs should be left out")
	}
	src, _ := rec["source"].(map[string]any)
	if file, _ := src["file"].(string); !strings.HasSuffix(file, "slog_test.go") {
		t.Errorf("source = %v, want the caller", rec["source"])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(t, &buf, Options{App: "draftsite"}).Info(context.Background(), "seeded live content")
	if out := buf.String(); !strings.Contains(out, "msg=\"seeded live content\"") || !strings.Contains(out, "app=draftsite") {
		t.Fatalf("text output = %q", out)
	}
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{Level: slog.LevelWarn, StacktraceLevel: slog.LevelError + 4, JsonFormat: true})
	ctx := context.Background()

	l.Debug(ctx, "d")
	l.Info(ctx, "i")
	l.Warn(ctx, "w")
	l.Error(ctx, nil, "e")

	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("%d lines, want warn and error only:\n%s", got, buf.String())
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(t, &buf, Options{JsonFormat: true})
	ctx := context.Background()

	child := base.With("site", "working", 42, "non-string key", "dangling")
	child.With("request_id", "r1").Info(ctx, "draft served")
	rec := jsonRecord(t, &buf)
	if rec["site"] != "working" || rec["request_id"] != "r1" {
		t.Fatalf("record = %v", rec)
	}
	if _, ok := rec["dangling"]; ok {
		t.Fatal("odd trailing value should be dropped")
	}

	base.Info(ctx, "parent")
	if rec := jsonRecord(t, &buf); rec["site"] != nil {
		t.Fatalf("With leaked into the parent: %v", rec)
	}
	if base.With() != Logger(base) {
		t.Fatal("With() without fields should return the receiver")
	}
}

type notFound struct{ path string }

func (e *notFound) Error() string { return "not found: " + e.path }

func TestError(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true, IncludeErrorLinks: true})

	root := &notFound{path: "drafts/new/index.html"}
	err := xerrors.Wrap(fmt.Errorf("open snapshot: %w", root), "serve working")
	l.Error(context.Background(), err, "request failed", "site", "working")

	rec := jsonRecord(t, &buf)
	if rec["error_type"] != "*log.notFound" || rec["cause_type"] != "*log.notFound" {
		t.Fatalf("types = %v / %v", rec["error_type"], rec["cause_type"])
	}
	if chain, _ := rec["error_chain"].([]any); len(chain) != 3 {
		t.Fatalf("error_chain = %v", rec["error_chain"])
	}
	links, _ := rec["error_links"].([]any)
	if len(links) == 0 {
		t.Fatal("error_links missing")
	}
	if first, _ := links[0].(map[string]any); !strings.HasSuffix(fmt.Sprint(first["file"]), "slog_test.go") {
		t.Fatalf("first link should point at the Wrap call: %v", first)
	}
	if rec["site"] != "working" {
		t.Fatalf("caller kv lost: %v", rec)
	}
	if s, _ := rec["stack"].(string); s == "" {
		t.Fatal("error records carry a stack")
	}
}

func TestError_Minimal(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true})

	l.Error(context.Background(), errors.New("boom"), "plain")
	rec := jsonRecord(t, &buf)
	if rec["err"] != "boom" || rec["error_type"] != "*errors.errorString" {
		t.Fatalf("record = %v", rec)
	}
	for _, k := range []string{"error_chain", "error_links"} {
		if _, ok := rec[k]; ok {
			t.Errorf("%s should be omitted", k)
		}
	}

	l.Error(context.Background(), nil, "no error")
	if rec := jsonRecord(t, &buf); rec["err"] != nil || rec["msg"] != "no error" {
		t.Fatalf("nil error record = %v", rec)
	}
}

func TestTraceHandler(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x0c},
		TraceFlags: trace.FlagsSampled,
	})
	l.Info(trace.ContextWithSpanContext(context.Background(), sc), "traced")
	rec := jsonRecord(t, &buf)
	if rec["trace_id"] != sc.TraceID().String() || rec["span_id"] != sc.SpanID().String() {
		t.Fatalf("record = %v", rec)
	}

	l.Info(context.Background(), "untraced")
	if rec := jsonRecord(t, &buf); rec["trace_id"] != nil {
		t.Fatalf("trace_id without a span: %v", rec)
	}
}

func TestStackHandler(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true, StacktraceLevel: slog.LevelWarn})
	ctx := context.Background()

	l.Info(ctx, "below")
	if rec := jsonRecord(t, &buf); rec["stack"] != nil {
		t.Fatal("no stack below the threshold")
	}
	l.Warn(ctx, "at")
	if rec := jsonRecord(t, &buf); rec["stack"] == nil {
		t.Fatal("stack missing at the threshold")
	}

	// a captured stack wins over the logging call site
	err := captureHere()
	l.Error(ctx, err, "with captured stack")
	if s, _ := jsonRecord(t, &buf)["stack"].(string); !strings.Contains(s, "captureHere") {
		t.Fatalf("stack = %q", s)
	}
}

func captureHere() error { return xerrors.New("content: no active snapshot") }

func TestErrorChain(t *testing.T) {
	a := errors.New("a")
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"nil", nil, nil},
		{"single", a, []string{"a"}},
		{"wrapped", fmt.Errorf("b: %w", a), []string{"b: a", "a"}},
		{"stack adds nothing", xerrors.WithStack(a), []string{"a"}},
		{"joined", errors.Join(a, errors.New("c")), []string{"a\nc", "a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorChain(tt.err); fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Fatalf("chain = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyTypes(t *testing.T) {
	if s, r := classifyTypes(nil); s != "" || r != "" {
		t.Fatalf("nil = %q %q", s, r)
	}
	s, r := classifyTypes(xerrors.Wrap(xerrors.WithStack(errors.New("x")), "ctx"))
	if s != "*errors.errorString" || r != "*errors.errorString" {
		t.Fatalf("got %q %q", s, r)
	}
}

func TestChainLinks_Max(t *testing.T) {
	err := errors.New("root")
	for i := range 5 {
		err = xerrors.Wrapf(err, "layer %d", i)
	}
	if got := len(chainLinks(err, 3)); got != 3 {
		t.Fatalf("links = %d, want 3", got)
	}
}

func TestFrameHelpers(t *testing.T) {
	if _, ok := frameAt(0); ok {
		t.Fatal("zero pc resolved")
	}
	if _, ok := callSite(nil); ok {
		t.Fatal("empty stack resolved")
	}
	if fr, ok := callSite(callers(2)); !ok || !strings.HasSuffix(fr.Function, ".TestFrameHelpers") {
		t.Fatalf("call site = %v", fr.Function)
	}
	if formatFrames(nil) != "" {
		t.Fatal("empty stack rendered")
	}
}
