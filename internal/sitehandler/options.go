package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/keithlinneman/draftsite/internal/content"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/siteversion"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

// SnapshotSource returns the snapshot to serve for a site version and the
// version it was actually taken from. content.Sites implements it.
type SnapshotSource interface {
	Get(v siteversion.SiteVersion) (*content.Snapshot, siteversion.SiteVersion, bool)
}

// VersionResolver picks the site version for a request. preview.Resolver
// implements it.
type VersionResolver interface {
	SiteVersion(r *http.Request) siteversion.SiteVersion
}

// Observer counts served requests per site version label.
type Observer interface {
	ObserveSiteRequest(site string)
}

type Options struct {
	Logger log.Logger

	Content SnapshotSource
	// Versions defaults to always Live.
	Versions VersionResolver
	Observer Observer

	// FallbackFS holds the pages served when a snapshot cannot answer.
	// MaintenanceFile must exist in it; Fallback404File may.
	FallbackFS      fs.FS
	MaintenanceFile string
	Fallback404File string
	// Site404File is looked up in the served snapshot first.
	Site404File string

	HTMLCacheControl  string
	AssetCacheControl string
	OtherCacheControl string

	// DraftCacheControl replaces every policy above on Working responses.
	DraftCacheControl string // default: "private, no-store"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	for _, d := range []struct {
		field *string
		value string
	}{
		{&o.MaintenanceFile, "maintenance.html"},
		{&o.Fallback404File, "404.html"},
		{&o.Site404File, "404.html"},
		{&o.HTMLCacheControl, "no-cache"},
		{&o.AssetCacheControl, "public, max-age=31536000, immutable"},
		{&o.OtherCacheControl, "public, max-age=3600"},
		{&o.DraftCacheControl, "private, no-store"},
	} {
		if *d.field == "" {
			*d.field = d.value
		}
	}
}

func (o *Options) validate() error {
	if o.Content == nil {
		return fmt.Errorf("%w: Content is nil", ErrInvalidOptions)
	}
	if o.FallbackFS == nil {
		return fmt.Errorf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	if !isFile(o.FallbackFS, o.MaintenanceFile) {
		return fmt.Errorf("%w: fallback FS has no %q", ErrInvalidOptions, o.MaintenanceFile)
	}
	return nil
}
