package httpmw

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errNoHijack = errors.New("httpmw: underlying ResponseWriter cannot hijack")

// recorder tracks what a handler wrote. The first byte (or header) opens a
// response.write child span when the request span is recording, so slow
// clients show up as time blocked on the socket rather than handler time.
type recorder struct {
	http.ResponseWriter

	ctx     context.Context
	started time.Time

	status  int
	written int64

	span    trace.Span
	opened  bool
	blocked time.Duration
	err     error
}

func newRecorder(w http.ResponseWriter, r *http.Request) *recorder {
	return &recorder{ResponseWriter: w, ctx: r.Context(), started: time.Now()}
}

// Status is the code sent to the client, 200 when the handler never set one.
func (rec *recorder) Status() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

func (rec *recorder) open() {
	if rec.opened {
		return
	}
	rec.opened = true

	parent := trace.SpanFromContext(rec.ctx)
	if !parent.IsRecording() {
		return
	}
	ttfb := time.Since(rec.started)
	_, rec.span = otel.Tracer("draftsite/httpmw").Start(rec.ctx, "response.write",
		trace.WithAttributes(attribute.Float64("http.server.ttfb_seconds", ttfb.Seconds())))
}

func (rec *recorder) close() {
	if rec.span == nil {
		return
	}
	rec.span.SetAttributes(
		attribute.Int("http.response.status_code", rec.Status()),
		attribute.Int64("http.response.body.size", rec.written),
		attribute.Float64("http.server.write.block_seconds", rec.blocked.Seconds()),
	)
	if rec.err != nil {
		rec.span.RecordError(rec.err)
		rec.span.SetStatus(codes.Error, rec.err.Error())
	}
	rec.span.End()
}

func (rec *recorder) WriteHeader(code int) {
	rec.open()
	if rec.status == 0 {
		rec.status = code
	}
	t := time.Now()
	rec.ResponseWriter.WriteHeader(code)
	rec.blocked += time.Since(t)
}

func (rec *recorder) Write(b []byte) (int, error) {
	rec.open()
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	t := time.Now()
	n, err := rec.ResponseWriter.Write(b)
	rec.blocked += time.Since(t)
	rec.written += int64(n)
	if err != nil && rec.err == nil {
		rec.err = err
	}
	return n, err
}

func (rec *recorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errNoHijack
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *recorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }
