package opshttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/keithlinneman/draftsite/internal/content"
	"github.com/keithlinneman/draftsite/internal/siteversion"
)

// SitesStatus exposes the per-version managers. content.Sites implements it.
type SitesStatus interface {
	Manager(v siteversion.SiteVersion) *content.Manager
}

type siteStatus struct {
	Site     string    `json:"site"`
	Loaded   bool      `json:"loaded"`
	Version  string    `json:"version,omitempty"`
	Hash     string    `json:"hash,omitempty"`
	Source   string    `json:"source,omitempty"`
	Signed   bool      `json:"signed"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
}

// contentStatusHandler lists what each site version is serving right now.
func contentStatusHandler(sites SitesStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := make([]siteStatus, 0, len(siteversion.All()))
		for _, v := range siteversion.All() {
			m := sites.Manager(v)
			st := siteStatus{Site: v.Label()}
			if snap, ok := m.Get(); ok {
				st.Loaded = true
				st.Version = m.ContentVersion()
				st.Hash = snap.Meta.Hash
				st.Source = string(snap.Meta.Source)
				st.Signed = snap.Meta.Signed
				st.LoadedAt = snap.LoadedAt
			}
			out = append(out, st)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(out)
	}
}
