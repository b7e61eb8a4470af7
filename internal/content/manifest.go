package content

import (
	"encoding/json"
	"io/fs"
	"time"

	"github.com/keithlinneman/draftsite/internal/xerrors"
)

// ManifestFilePath is where the build pipeline writes the bundle manifest.
const ManifestFilePath = "manifest.json"

// Manifest describes a bundle as the build pipeline produced it.
type Manifest struct {
	Schema    string         `json:"schema"`
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Source    ManifestSource `json:"source"`
	Pages     []Page         `json:"pages"`
}

type ManifestSource struct {
	Repository string `json:"repository"`
	Commit     string `json:"commit"`
	Branch     string `json:"branch"`
	Dirty      bool   `json:"dirty"`
}

// Page is one routable document in a bundle. File is the path inside the
// bundle; Path is the URL path it is served at.
type Page struct {
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	File      string    `json:"file,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// LoadManifest reads and parses manifest.json. A bundle without one returns
// an error wrapping fs.ErrNotExist.
func LoadManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestFilePath)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", ManifestFilePath)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, xerrors.Wrapf(err, "parse %s", ManifestFilePath)
	}
	return &m, nil
}

// checkPages verifies every page the manifest lists exists in the bundle.
func (m *Manifest) checkPages(fsys fs.FS) error {
	for _, p := range m.Pages {
		if p.File == "" {
			continue
		}
		if _, err := fs.Stat(fsys, p.File); err != nil {
			return xerrors.Wrapf(err, "validate: manifest page %q missing from bundle", p.File)
		}
	}
	return nil
}
