// Package webassets holds the pages the binary can serve before, or without,
// a published content bundle.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed fallback seed
var embedded embed.FS

// fallbackPages are required by the site handler.
var fallbackPages = []string{"maintenance.html", "404.html"}

func sub(dir string) fs.FS {
	s, err := fs.Sub(embedded, dir)
	if err != nil {
		panic(fmt.Errorf("webassets: %s: %w", dir, err))
	}
	return s
}

// FallbackFS returns the maintenance and not-found pages. A binary built
// without them panics here rather than at the first error page.
func FallbackFS() fs.FS {
	s := sub("fallback")
	for _, p := range fallbackPages {
		if _, err := fs.Stat(s, p); err != nil {
			panic(fmt.Errorf("webassets: fallback page %s: %w", p, err))
		}
	}
	return s
}

// SeedSiteFS returns the built-in Live site, or false when seed/ has no
// index page.
func SeedSiteFS() (fs.FS, bool) {
	s := sub("seed")
	if _, err := fs.Stat(s, "index.html"); err != nil {
		return nil, false
	}
	return s, true
}
