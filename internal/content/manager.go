package content

import (
	"sync/atomic"
	"time"

	"github.com/keithlinneman/draftsite/internal/siteversion"
)

// Manager holds the active snapshot for one site version. Reads never
// block; Set replaces the whole snapshot at once.
type Manager struct {
	site   siteversion.SiteVersion
	active atomic.Pointer[Snapshot]
}

func NewManager(site siteversion.SiteVersion) *Manager { return &Manager{site: site} }

func (m *Manager) Site() siteversion.SiteVersion { return m.site }

// Set stores a copy of s, stamping LoadedAt and the site when unset.
func (m *Manager) Set(s Snapshot) {
	if s.LoadedAt.IsZero() {
		s.LoadedAt = time.Now().UTC()
	}
	if s.Meta.Site == "" {
		s.Meta.Site = m.site
	}
	m.active.Store(&s)
}

// Get returns the active snapshot. ok is false until one with a
// filesystem has been set.
func (m *Manager) Get() (*Snapshot, bool) {
	s := m.active.Load()
	return s, s != nil && s.FS != nil
}

// read applies f to the active snapshot, or returns zero when there is none.
func read[T any](m *Manager, zero T, f func(*Snapshot) T) T {
	if s := m.active.Load(); s != nil {
		return f(s)
	}
	return zero
}

// ContentVersion is the manifest version, or Meta.Version without one.
func (m *Manager) ContentVersion() string {
	return read(m, "", func(s *Snapshot) string {
		if s.Manifest != nil && s.Manifest.Version != "" {
			return s.Manifest.Version
		}
		return s.Meta.Version
	})
}

func (m *Manager) ContentHash() string {
	return read(m, "", func(s *Snapshot) string { return s.Meta.Hash })
}

func (m *Manager) Manifest() *Manifest {
	return read(m, nil, func(s *Snapshot) *Manifest { return s.Manifest })
}

func (m *Manager) Source() Source {
	return read(m, SourceUnknown, func(s *Snapshot) Source { return s.Meta.Source })
}

func (m *Manager) LoadedAt() time.Time {
	return read(m, time.Time{}, func(s *Snapshot) time.Time { return s.LoadedAt })
}
