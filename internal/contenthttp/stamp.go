package contenthttp

import (
	"net/http"

	"github.com/keithlinneman/draftsite/internal/httpmw"
	"github.com/keithlinneman/draftsite/internal/siteversion"
)

// Stamp reports the bundle that serves r, for httpmw.ContentHeaders.
// X-Site-Version names the version actually served, so a draft request
// that fell back to Live says Live.
func Stamp(content SnapshotSource, versions VersionResolver) httpmw.ContentInfo {
	return httpmw.ContentInfoFunc(func(r *http.Request) httpmw.ContentStamp {
		requested := siteversion.Live
		if versions != nil {
			requested = versions.SiteVersion(r)
		}
		snap, served, ok := content.Get(requested)
		if !ok {
			return httpmw.ContentStamp{}
		}
		return httpmw.ContentStamp{
			SiteVersion:   served.String(),
			BundleVersion: snap.Meta.Version,
			Hash:          snap.Meta.Hash,
		}
	})
}
