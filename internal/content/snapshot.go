package content

import (
	"io/fs"
	"time"
)

// Snapshot is one loaded bundle. Treat it as immutable once handed to a
// Manager.
type Snapshot struct {
	FS       fs.FS
	Meta     Meta
	Manifest *Manifest
	LoadedAt time.Time
}
