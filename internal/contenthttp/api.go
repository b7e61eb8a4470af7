// Package contenthttp serves read-only JSON views of the content a request
// is allowed to see. Draft-mode requests get the Working bundle.
package contenthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/draftsite/internal/content"
	"github.com/keithlinneman/draftsite/internal/httpmw"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/siteversion"
)

// SnapshotSource returns the snapshot for a site version and the version it
// was taken from. content.Sites implements it.
type SnapshotSource interface {
	Get(v siteversion.SiteVersion) (*content.Snapshot, siteversion.SiteVersion, bool)
}

// VersionResolver picks the site version for a request.
type VersionResolver interface {
	SiteVersion(r *http.Request) siteversion.SiteVersion
}

// API implements the content endpoints
type API struct {
	content  SnapshotSource
	versions VersionResolver
	logger   log.Logger
}

// NewAPI creates a content API. A nil resolver serves Live to everyone.
func NewAPI(content SnapshotSource, versions VersionResolver, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{
		content:  content,
		versions: versions,
		logger:   logger,
	}
}

func (api *API) RegisterRoutes(r chi.Router) {
	r = r.With(httpmw.Scope("content"))
	r.Get("/api/content/pages", api.HandlePages)
	r.Get("/api/content/summary", api.HandleSummary)
}

type PageItem struct {
	Title     string     `json:"title"`
	Path      string     `json:"path"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type PagesResponse struct {
	SiteVersion string     `json:"site_version"`
	Total       int        `json:"total"`
	Items       []PageItem `json:"items"`
}

// SummaryResponse describes the bundle being served.
type SummaryResponse struct {
	SiteVersion string    `json:"site_version"`
	Version     string    `json:"version,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	CommitShort string    `json:"commit_short,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	Source      string    `json:"source"`
	Signed      bool      `json:"signed"`
	TotalPages  int       `json:"total_pages"`
	LoadedAt    time.Time `json:"loaded_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandlePages lists the pages of the snapshot the request resolves to.
func (api *API) HandlePages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requested := api.siteVersion(r)

	snap, served, ok := api.content.Get(requested)
	if !ok {
		api.writeJSON(ctx, w, requested, http.StatusServiceUnavailable, errorResponse{Error: "no content loaded"})
		return
	}

	pages, err := snap.Pages()
	if err != nil {
		api.logger.Error(ctx, err, "list pages", "site", served.Label())
		api.writeJSON(ctx, w, requested, http.StatusInternalServerError, errorResponse{Error: "failed to list pages"})
		return
	}

	resp := PagesResponse{
		SiteVersion: served.String(),
		Total:       len(pages),
		Items:       make([]PageItem, 0, len(pages)),
	}
	for _, p := range pages {
		item := PageItem{Title: p.Title, Path: p.Path}
		if !p.UpdatedAt.IsZero() {
			t := p.UpdatedAt.UTC()
			item.UpdatedAt = &t
		}
		resp.Items = append(resp.Items, item)
	}

	api.logger.Debug(ctx, "served content pages",
		"site", served.Label(),
		"total", resp.Total,
	)

	api.writeJSON(ctx, w, requested, http.StatusOK, resp)
}

// HandleSummary serves a lightweight description of the active bundle.
func (api *API) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requested := api.siteVersion(r)

	snap, served, ok := api.content.Get(requested)
	if !ok {
		api.writeJSON(ctx, w, requested, http.StatusServiceUnavailable, errorResponse{Error: "no content loaded"})
		return
	}

	resp := SummaryResponse{
		SiteVersion: served.String(),
		Version:     snap.Meta.Version,
		ContentHash: snap.Meta.Hash,
		Source:      string(snap.Meta.Source),
		Signed:      snap.Meta.Signed,
		LoadedAt:    snap.LoadedAt.Truncate(time.Second),
	}
	if m := snap.Manifest; m != nil {
		resp.CreatedAt = m.CreatedAt
		resp.CommitShort = shortCommit(m.Source.Commit)
	}
	if pages, err := snap.Pages(); err == nil {
		resp.TotalPages = len(pages)
	}

	api.writeJSON(ctx, w, requested, http.StatusOK, resp)
}

func (api *API) siteVersion(r *http.Request) siteversion.SiteVersion {
	if api.versions == nil {
		return siteversion.Live
	}
	return api.versions.SiteVersion(r)
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, requested siteversion.SiteVersion, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if requested == siteversion.Working {
		w.Header().Set("Cache-Control", "private, no-store")
		w.Header().Set("X-Robots-Tag", "noindex")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
