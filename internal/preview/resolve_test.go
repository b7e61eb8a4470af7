package preview

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keithlinneman/draftsite/internal/cookiejar"
	"github.com/keithlinneman/draftsite/internal/draftmode"
	"github.com/keithlinneman/draftsite/internal/siteversion"
)

func TestResolver(t *testing.T) {
	rt, _ := draftmode.New(draftmode.Options{Key: []byte("k"), CookieName: testNames.BypassCookie})
	res := NewResolver(rt, testNames)
	tok, _ := rt.Mint()

	tests := []struct {
		name    string
		cookies map[string]string
		want    siteversion.SiteVersion
	}{
		{"no cookies", nil, siteversion.Live},
		{"valid session and draft metadata", map[string]string{"bypass": tok, "preview-metadata": Draft.Encode()}, siteversion.Working},
		{"metadata without session", map[string]string{"preview-metadata": Draft.Encode()}, siteversion.Live},
		{"session without metadata", map[string]string{"bypass": tok}, siteversion.Live},
		{"forged session", map[string]string{"bypass": "abc.def", "preview-metadata": Draft.Encode()}, siteversion.Live},
		{"disabled metadata", map[string]string{"bypass": tok, "preview-metadata": `{"enabled":false,"siteVersion":"Working"}`}, siteversion.Live},
		{"garbage metadata", map[string]string{"bypass": tok, "preview-metadata": "{"}, siteversion.Live},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.cookies {
				r = cookiejar.WithCookie(r, k, v)
			}
			if got := res.SiteVersion(r); got != tt.want {
				t.Fatalf("SiteVersion = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolver_Middleware(t *testing.T) {
	rt, _ := draftmode.New(draftmode.Options{Key: []byte("k"), CookieName: testNames.BypassCookie})
	res := NewResolver(rt, testNames)
	tok, _ := rt.Mint()

	r := httptest.NewRequest("GET", "/", nil)
	r = cookiejar.WithCookie(r, "bypass", tok)
	r = cookiejar.WithCookie(r, "preview-metadata", Draft.Encode())

	var got Metadata
	var fromCtx bool
	res.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, fromCtx = metadataFromContext(r.Context())
		got = res.Resolve(r)
	})).ServeHTTP(httptest.NewRecorder(), r)

	if !fromCtx || got != Draft {
		t.Fatalf("Resolve = %+v (from context %v)", got, fromCtx)
	}
}

func TestResolver_Nil(t *testing.T) {
	var res *Resolver
	if got := res.Resolve(httptest.NewRequest("GET", "/", nil)); got != Published {
		t.Fatalf("nil resolver = %+v", got)
	}
}

func TestResolver_LogFields(t *testing.T) {
	rt, _ := draftmode.New(draftmode.Options{Key: []byte("k"), CookieName: testNames.BypassCookie})
	res := NewResolver(rt, testNames)
	tok, _ := rt.Mint()

	r := httptest.NewRequest("GET", "/drafts/new/", nil)
	if got := fmt.Sprint(res.LogFields(r)); got != "[site_version live preview false]" {
		t.Fatalf("published fields = %s", got)
	}
	r = cookiejar.WithCookie(r, "bypass", tok)
	r = cookiejar.WithCookie(r, "preview-metadata", Draft.Encode())
	if got := fmt.Sprint(res.LogFields(r)); got != "[site_version working preview true]" {
		t.Fatalf("draft fields = %s", got)
	}
}

// The gateway's output is accepted by the resolver when both share a runtime.
func TestGatewayEndpointResolver_RoundTrip(t *testing.T) {
	ep, rt := newTestEndpoint(t)
	srv := httptest.NewServer(ep)
	defer srv.Close()
	g := newTestGateway(t, srv.URL+ActivationPath, nil)
	res := NewResolver(rt, testNames)

	var version siteversion.SiteVersion
	h := g.Middleware(res.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version = res.SiteVersion(r)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/product/shoes?activation-key=s3cr3t", nil))
	if version != siteversion.Working {
		t.Fatalf("activated request resolved to %s", version)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/product/shoes", nil))
	if version != siteversion.Live {
		t.Fatalf("plain request resolved to %s", version)
	}
}
