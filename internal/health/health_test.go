package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type ctxKey struct{}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
		code int
		body string
	}{
		{"healthy", HealthzHandler(OK), 200, "ok\n"},
		{"healthy nil check", HealthzHandler(nil), 200, "ok\n"},
		{"ready", ReadyzHandler(OK), 200, "ready\n"},
		{"not ready", ReadyzHandler(Fixed(errNoLive)), 503, errNoLive.Error() + "\n"},
		{"draining", ReadyzHandler(All(Fixed(ErrDraining), OK)), 503, "draining\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.h.ServeHTTP(rec, httptest.NewRequest("GET", "/-/ready", nil))
			if rec.Code != tt.code || rec.Body.String() != tt.body {
				t.Fatalf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tt.code, tt.body)
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Fatalf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestHandlers_PassRequestContext(t *testing.T) {
	var got any
	p := CheckFunc(func(ctx context.Context) error {
		got = ctx.Value(ctxKey{})
		return nil
	})
	req := httptest.NewRequest("GET", "/healthz", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "req-1"))
	HealthzHandler(p).ServeHTTP(httptest.NewRecorder(), req)
	if got != "req-1" {
		t.Fatalf("check saw %v", got)
	}
}
