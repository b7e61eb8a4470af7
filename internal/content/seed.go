package content

import (
	"io/fs"
	"time"
)

// SeedSnapshot wraps a built-in site so it can be served before any bundle
// has loaded. An unreadable manifest is ignored.
func SeedSnapshot(fsys fs.FS) Snapshot {
	m, err := LoadManifest(fsys)
	if err != nil {
		m = nil
	}
	version := "seed"
	if m != nil && m.Version != "" {
		version = m.Version
	}
	return Snapshot{
		FS: fsys,
		Meta: Meta{
			Version:    version,
			Source:     SourceSeed,
			VerifiedAt: time.Now().UTC(),
		},
		Manifest: m,
	}
}
