package preview

import (
	"context"
	"net/http"

	"github.com/keithlinneman/draftsite/internal/cookiejar"
	"github.com/keithlinneman/draftsite/internal/draftmode"
	"github.com/keithlinneman/draftsite/internal/siteversion"
)

// Resolver decides which site version a request may see. Working is only
// granted when the bypass cookie verifies AND the metadata cookie asks for it.
type Resolver struct {
	runtime        *draftmode.Runtime
	metadataCookie string
}

func NewResolver(rt *draftmode.Runtime, names Names) *Resolver {
	return &Resolver{runtime: rt, metadataCookie: names.withDefaults().MetadataCookie}
}

func (res *Resolver) Resolve(r *http.Request) Metadata {
	if m, ok := metadataFromContext(r.Context()); ok {
		return m
	}
	return res.resolve(r)
}

func (res *Resolver) SiteVersion(r *http.Request) siteversion.SiteVersion {
	return res.Resolve(r).SiteVersion
}

// LogFields describes the resolved session for the access log.
func (res *Resolver) LogFields(r *http.Request) []any {
	m := res.Resolve(r)
	return []any{"site_version", m.SiteVersion.Label(), "preview", m.Enabled}
}

// Middleware resolves once and stores the result on the request context so
// later handlers don't verify the token again.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := res.resolve(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), metadataKey{}, m)))
	})
}

func (res *Resolver) resolve(r *http.Request) Metadata {
	if res == nil || res.runtime == nil || !res.runtime.Enabled(r) {
		return Published
	}
	raw, ok := cookiejar.FromRequest(r).Get(res.metadataCookie)
	if !ok {
		return Published
	}
	m, err := ParseMetadata(raw)
	if err != nil || !m.Enabled {
		return Published
	}
	return m
}

type metadataKey struct{}

func metadataFromContext(ctx context.Context) (Metadata, bool) {
	m, ok := ctx.Value(metadataKey{}).(Metadata)
	return m, ok
}
