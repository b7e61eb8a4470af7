package content

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadManifest(t *testing.T) {
	fsys := fstest.MapFS{"manifest.json": &fstest.MapFile{Data: []byte(`{
		"schema": "draftsite/manifest/v1",
		"version": "2026.10.1",
		"created_at": "2026-10-01T12:00:00Z",
		"source": {"repository": "github.com/example/site", "commit": "abc123", "branch": "main"},
		"pages": [
			{"title": "Home", "path": "/", "file": "index.html"},
			{"title": "Hello", "path": "/blog/hello/", "file": "blog/hello/index.html", "updated_at": "2026-09-30T08:00:00Z"}
		]
	}`)}}

	m, err := LoadManifest(fsys)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Version != "2026.10.1" || m.Source.Commit != "abc123" || len(m.Pages) != 2 {
		t.Fatalf("manifest = %+v", m)
	}
	if !m.CreatedAt.Equal(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("CreatedAt = %v", m.CreatedAt)
	}
	if m.Pages[1].File != "blog/hello/index.html" {
		t.Fatalf("page = %+v", m.Pages[1])
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(fstest.MapFS{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	_, err := LoadManifest(fstest.MapFS{"manifest.json": &fstest.MapFile{Data: []byte("{not json")}})
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want parse error", err)
	}
}
