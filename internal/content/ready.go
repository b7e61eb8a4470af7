package content

import "github.com/keithlinneman/draftsite/internal/xerrors"

// ReadyErr returns an error if there is no active snapshot
func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return xerrors.Newf("content: no active %s snapshot", m.site.Label())
	}
	return nil
}

// ReadyErr reports whether the published site can be served. A missing
// Working bundle is not an error since Working falls back to Live.
func (s *Sites) ReadyErr() error {
	return s.live.ReadyErr()
}
