package sitehandler

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/draftsite/internal/siteversion"
)

// Handler serves the static site for the request's site version. Working
// responses are marked private and noindex whichever bundle they come from.
type Handler struct {
	opts Options
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: opts}, nil
}

// RegisterRoutes installs the handler as the router's fallback. Register it
// last so explicit routes win.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.NotFound(h.ServeHTTP)
	r.MethodNotAllowed(h.ServeHTTP)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rw := responder{w: w, r: r, opts: &h.opts}
	requested := siteversion.Live
	if h.opts.Versions != nil {
		requested = h.opts.Versions.SiteVersion(r)
	}
	if requested == siteversion.Working {
		rw.draft = true
		w.Header().Set("X-Robots-Tag", "noindex")
		w.Header().Add("Vary", "Cookie")
	}

	snap, served, ok := h.opts.Content.Get(requested)
	if h.opts.Observer != nil {
		h.opts.Observer.ObserveSiteRequest(served.Label())
	}
	if !ok {
		rw.cache("no-store")
		w.Header().Set("Retry-After", "60")
		rw.file(http.StatusServiceUnavailable, h.opts.FallbackFS, h.opts.MaintenanceFile)
		return
	}

	t, found := lookup(snap.FS, r.URL.Path)
	switch {
	case !found:
		rw.notFound(snap.FS)
	case t.redirect != "":
		// the query may carry an activation link
		loc := t.redirect
		if r.URL.RawQuery != "" {
			loc += "?" + r.URL.RawQuery
		}
		rw.cache("no-cache")
		http.Redirect(w, r, loc, http.StatusPermanentRedirect)
	default:
		rw.cache(h.opts.cachePolicy(t.file))
		http.ServeFileFS(w, r, snap.FS, t.file)
	}
}

// responder writes one response, applying the draft cache policy when the
// request is in draft mode.
type responder struct {
	w     http.ResponseWriter
	r     *http.Request
	opts  *Options
	draft bool
}

func (rw responder) cache(policy string) {
	if rw.draft {
		policy = rw.opts.DraftCacheControl
	}
	if policy != "" {
		rw.w.Header().Set("Cache-Control", policy)
	}
}

// notFound prefers the snapshot's themed page, then the embedded one, then
// plain text.
func (rw responder) notFound(site fs.FS) {
	rw.cache("no-store")
	switch {
	case isFile(site, rw.opts.Site404File):
		rw.file(http.StatusNotFound, site, rw.opts.Site404File)
	case isFile(rw.opts.FallbackFS, rw.opts.Fallback404File):
		rw.file(http.StatusNotFound, rw.opts.FallbackFS, rw.opts.Fallback404File)
	default:
		rw.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.w.WriteHeader(http.StatusNotFound)
		_, _ = rw.w.Write([]byte("404 page not found"))
	}
}

// file serves name with status in place of the 200 ServeFileFS would send.
// ServeFileFS judges the request path, so the page is served as if /name
// had been requested: a dot-dot path would get a bare 400 and an
// .../index.html path a redirect.
func (rw responder) file(status int, fsys fs.FS, name string) {
	r := rw.r
	if want := "/" + name; r.URL.Path != want {
		r = r.Clone(r.Context())
		r.URL.Path, r.URL.RawPath = want, ""
	}
	http.ServeFileFS(&forcedStatus{ResponseWriter: rw.w, status: status}, r, fsys, name)
}

// forcedStatus replaces the first WriteHeader code. Later calls pass through.
type forcedStatus struct {
	http.ResponseWriter
	status int
	done   bool
}

func (f *forcedStatus) WriteHeader(code int) {
	if !f.done {
		f.done = true
		code = f.status
	}
	f.ResponseWriter.WriteHeader(code)
}
