package content

import (
	"time"

	"github.com/keithlinneman/draftsite/internal/siteversion"
)

type Source string

const (
	SourceUnknown Source = "unknown"
	SourceSeed    Source = "seed"
	SourceS3      Source = "s3"
)

type Meta struct {
	Site    siteversion.SiteVersion `json:"site"`
	Version string                  `json:"version,omitempty"`

	// Hash is the hex SHA-256 of the compressed bundle.
	Hash string `json:"sha256,omitempty"`

	VerifiedAt time.Time `json:"verified_at,omitempty"`
	Source     Source    `json:"source,omitempty"`

	// Signed is true when a detached signature was checked at load time.
	Signed bool `json:"signed"`
}
