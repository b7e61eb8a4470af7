package preview

import (
	"encoding/json"
	"fmt"

	"github.com/keithlinneman/draftsite/internal/siteversion"
)

// Metadata is the preview metadata cookie payload.
type Metadata struct {
	Enabled     bool                    `json:"enabled"`
	SiteVersion siteversion.SiteVersion `json:"siteVersion"`
}

// Published is what every request without a valid preview session sees.
var Published = Metadata{Enabled: false, SiteVersion: siteversion.Live}

// Draft is attached to requests the gateway activates.
var Draft = Metadata{Enabled: true, SiteVersion: siteversion.Working}

// Encode renders m as compact JSON, e.g. {"enabled":true,"siteVersion":"Working"}.
func (m Metadata) Encode() string {
	b, _ := json.Marshal(m)
	return string(b)
}

func ParseMetadata(s string) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Metadata{}, fmt.Errorf("parse preview metadata: %w", err)
	}
	if !m.SiteVersion.Valid() {
		return Metadata{}, fmt.Errorf("parse preview metadata: unknown site version %q", m.SiteVersion)
	}
	return m, nil
}
