package draftmode

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestRuntime(t *testing.T, now func() time.Time) *Runtime {
	t.Helper()
	rt, err := New(Options{Key: []byte("test-key"), TTL: time.Minute, Now: now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rt
}

func TestMintVerify(t *testing.T) {
	rt := newTestRuntime(t, nil)

	tok, err := rt.Mint()
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := rt.Verify(tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestMint_Unique(t *testing.T) {
	rt := newTestRuntime(t, nil)
	a, _ := rt.Mint()
	b, _ := rt.Mint()
	if a == b {
		t.Fatal("two mints produced the same token")
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rt := newTestRuntime(t, func() time.Time { return now })

	tok, _ := rt.Mint()
	now = now.Add(2 * time.Minute)

	if err := rt.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("Verify = %v, want ErrExpired", err)
	}
}

func TestVerify_OtherKey(t *testing.T) {
	a := newTestRuntime(t, nil)
	b, _ := New(Options{Key: []byte("different")})

	tok, _ := a.Mint()
	if err := b.Verify(tok); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("Verify = %v, want ErrBadSignature", err)
	}
}

func TestVerify_SameKeyAcrossInstances(t *testing.T) {
	a := newTestRuntime(t, nil)
	b := newTestRuntime(t, nil)

	tok, _ := a.Mint()
	if err := b.Verify(tok); err != nil {
		t.Fatalf("token from a rejected by b: %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	rt := newTestRuntime(t, nil)
	for _, tok := range []string{"", "nodot", "!!!.???", "YWJj.YWJj", "."} {
		if err := rt.Verify(tok); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q) = %v, want ErrMalformedToken", tok, err)
		}
	}
}

func TestVerify_Tampered(t *testing.T) {
	rt := newTestRuntime(t, nil)
	tok, _ := rt.Mint()
	p, s, _ := strings.Cut(tok, ".")
	flipped := []byte(p)
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}
	if err := rt.Verify(string(flipped) + "." + s); err == nil {
		t.Fatal("tampered token verified")
	}
}

func TestRandomKey(t *testing.T) {
	a, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, _ := New(Options{})
	tok, _ := a.Mint()
	if b.Verify(tok) == nil {
		t.Fatal("random keys should differ between runtimes")
	}
	if a.CookieName() != DefaultCookieName {
		t.Fatalf("CookieName = %q", a.CookieName())
	}
}

func TestEnable_SetsCookie(t *testing.T) {
	rt, _ := New(Options{Key: []byte("k"), CookieName: "bypass", Secure: true})
	rec := httptest.NewRecorder()

	if err := rt.Enable(rec, httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != "bypass" || c.Value == "" {
		t.Fatalf("cookie = %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("cookie attributes = %+v", c)
	}
	if err := rt.Verify(c.Value); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
}

func TestDisable_ExpiresCookie(t *testing.T) {
	rt := newTestRuntime(t, nil)
	rec := httptest.NewRecorder()
	rt.Disable(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("cookies = %+v, want one expired cookie", cookies)
	}
}

func TestEnabled(t *testing.T) {
	rt := newTestRuntime(t, nil)
	tok, _ := rt.Mint()

	tests := []struct {
		name   string
		cookie string
		want   bool
	}{
		{"no cookie", "", false},
		{"valid", DefaultCookieName + "=" + tok, true},
		{"valid among others", "locale=en; " + DefaultCookieName + "=" + tok, true},
		{"empty value", DefaultCookieName + "=", false},
		{"forged", DefaultCookieName + "=abc.def", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.cookie != "" {
				r.Header.Set("Cookie", tt.cookie)
			}
			if got := rt.Enabled(r); got != tt.want {
				t.Fatalf("Enabled = %v, want %v", got, tt.want)
			}
		})
	}
}
