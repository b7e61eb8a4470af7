// Package version reports what binary is running. The link-time variables
// are set with -ldflags "-X"; anything left empty is filled from the build
// info the Go toolchain stamps into the binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// AppName names the service in logs, traces, profiles and metrics.
const AppName = "draftsite"

var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	AppName    string `json:"app_name"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date"`
	BuildDate  string `json:"build_date"`
	BuildId    string `json:"build_id"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

func Get() Info {
	info := Info{
		AppName:    AppName,
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = info.merge(bi)
	}
	return info
}

// merge fills info from the toolchain stamp. The Go version and a present
// vcs.modified always win; the commit only replaces the "none" placeholder.
func (info Info) merge(bi *debug.BuildInfo) Info {
	info.GoVersion = bi.GoVersion
	vcs := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		vcs[s.Key] = s.Value
	}
	if rev := vcs["vcs.revision"]; rev != "" && info.Commit == "none" {
		info.Commit = rev
	}
	if at := vcs["vcs.time"]; at != "" {
		info.CommitDate = at
		if info.BuildDate == "" {
			info.BuildDate = at
		}
	}
	if dirty, err := strconv.ParseBool(vcs["vcs.modified"]); err == nil {
		info.VCSDirty = &dirty
	}
	return info
}

func (info Info) Dirty() bool { return info.VCSDirty != nil && *info.VCSDirty }

// String is the line printed by -V.
func (info Info) String() string {
	return fmt.Sprintf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)",
		info.AppName, info.Version, info.Commit, info.CommitDate, info.BuildId, info.BuildDate, info.GoVersion, info.Dirty())
}
