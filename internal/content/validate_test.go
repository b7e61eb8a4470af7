package content

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestValidateSnapshot(t *testing.T) {
	home := page("<html>home</html>")
	pages := &Manifest{Version: "2026.10.1", Pages: []Page{
		{Title: "Home", Path: "/", File: "index.html"},
		{Title: "Draft", Path: "/posts/draft/", File: "posts/draft/index.html"},
	}}
	full := fstest.MapFS{
		"index.html":             home,
		"posts/draft/index.html": page("draft"),
		"manifest.json":          page("{}"),
	}

	tests := []struct {
		name    string
		snap    *Snapshot
		opts    ValidationOptions
		wantErr string
	}{
		{"nil snapshot", nil, ValidationOptions{}, "no filesystem"},
		{"nil fs", &Snapshot{}, ValidationOptions{}, "no filesystem"},
		{"no index", &Snapshot{FS: fstest.MapFS{"about.html": home}}, ValidationOptions{}, "index.html"},
		{"empty index", &Snapshot{FS: fstest.MapFS{"index.html": page("")}}, ValidationOptions{}, "empty"},
		{"index only", &Snapshot{FS: fstest.MapFS{"index.html": home}}, ValidationOptions{}, ""},
		{"too few files", &Snapshot{FS: fstest.MapFS{"index.html": home}}, ValidationOptions{MinFiles: 2}, "has 1 files, minimum is 2"},
		{"dirs do not count", &Snapshot{FS: fstest.MapFS{"index.html": home, "a/b/c.txt": page("c")}}, ValidationOptions{MinFiles: 3}, "has 2 files"},
		{"exact min files", &Snapshot{FS: fstest.MapFS{"index.html": home, "a.css": page("a")}}, ValidationOptions{MinFiles: 2}, ""},
		{"manifest required", &Snapshot{FS: full}, ValidationOptions{RequireManifest: true}, "manifest.json is required"},
		{"manifest present", &Snapshot{FS: full, Manifest: pages}, DefaultValidationOptions(), ""},
		{"manifest page missing", &Snapshot{FS: fstest.MapFS{"index.html": home}, Manifest: pages}, ValidationOptions{}, "posts/draft/index.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSnapshot(tt.snap, tt.opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultValidationOptions(t *testing.T) {
	if got := DefaultValidationOptions(); got.MinFiles != 2 || !got.RequireManifest {
		t.Fatalf("defaults = %+v", got)
	}
}
