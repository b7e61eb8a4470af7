// Package siteversion names the two content snapshots the site can serve.
package siteversion

import (
	"fmt"
	"strings"
)

// SiteVersion selects which content snapshot a request is rendered from.
type SiteVersion string

const (
	// Live is the published snapshot every visitor sees.
	Live SiteVersion = "Live"
	// Working is the unpublished draft snapshot, served only in draft mode.
	Working SiteVersion = "Working"
)

// All returns every known site version, Live first.
func All() []SiteVersion { return []SiteVersion{Live, Working} }

// Parse accepts the canonical names case-insensitively.
func Parse(s string) (SiteVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live":
		return Live, nil
	case "working":
		return Working, nil
	default:
		return "", fmt.Errorf("unknown site version %q (valid versions are Live|Working)", s)
	}
}

func (v SiteVersion) Valid() bool { return v == Live || v == Working }

// Label is the lowercase form used for metric labels and SSM/config keys.
func (v SiteVersion) Label() string { return strings.ToLower(string(v)) }

func (v SiteVersion) String() string { return string(v) }
