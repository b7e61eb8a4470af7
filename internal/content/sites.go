package content

import "github.com/keithlinneman/draftsite/internal/siteversion"

// Sites holds one Manager per site version.
type Sites struct {
	live    *Manager
	working *Manager
}

func NewSites() *Sites {
	return &Sites{
		live:    NewManager(siteversion.Live),
		working: NewManager(siteversion.Working),
	}
}

// Manager returns the manager for v. Anything but Working maps to Live.
func (s *Sites) Manager(v siteversion.SiteVersion) *Manager {
	if v == siteversion.Working {
		return s.working
	}
	return s.live
}

// Get returns the snapshot to serve for v and the version it actually came
// from. Working without a loaded bundle serves Live.
func (s *Sites) Get(v siteversion.SiteVersion) (*Snapshot, siteversion.SiteVersion, bool) {
	if v == siteversion.Working {
		if snap, ok := s.working.Get(); ok {
			return snap, siteversion.Working, true
		}
	}
	snap, ok := s.live.Get()
	return snap, siteversion.Live, ok
}
