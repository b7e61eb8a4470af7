package content

import (
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Pages lists the routable documents in a snapshot. The manifest is
// authoritative when present; otherwise every .html file is a page, with
// index.html mapped to its directory.
func (s *Snapshot) Pages() ([]Page, error) {
	if s == nil || s.FS == nil {
		return nil, nil
	}
	if s.Manifest != nil {
		out := make([]Page, len(s.Manifest.Pages))
		copy(out, s.Manifest.Pages)
		return out, nil
	}

	var pages []Page
	err := fs.WalkDir(s.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		pages = append(pages, Page{Path: urlPathFor(p), File: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages, nil
}

func urlPathFor(file string) string {
	if file == "index.html" {
		return "/"
	}
	if dir, ok := strings.CutSuffix(file, "/index.html"); ok {
		return "/" + dir + "/"
	}
	return "/" + file
}
