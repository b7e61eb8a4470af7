package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func stamp(settings ...string) *debug.BuildInfo {
	bi := &debug.BuildInfo{GoVersion: "go1.24.11"}
	for i := 0; i+1 < len(settings); i += 2 {
		bi.Settings = append(bi.Settings, debug.BuildSetting{Key: settings[i], Value: settings[i+1]})
	}
	return bi
}

func TestMerge(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name  string
		base  Info
		bi    *debug.BuildInfo
		check func(Info) bool
	}{
		{"commit placeholder replaced", Info{Commit: "none"}, stamp("vcs.revision", "abc123"),
			func(i Info) bool { return i.Commit == "abc123" && i.GoVersion == "go1.24.11" }},
		{"linked commit kept", Info{Commit: "r42"}, stamp("vcs.revision", "abc123"),
			func(i Info) bool { return i.Commit == "r42" }},
		{"vcs time fills dates", Info{}, stamp("vcs.time", "2026-10-01T12:00:00Z"),
			func(i Info) bool { return i.CommitDate == "2026-10-01T12:00:00Z" && i.BuildDate == i.CommitDate }},
		{"linked build date kept", Info{BuildDate: "2026-10-02"}, stamp("vcs.time", "2026-10-01T12:00:00Z"),
			func(i Info) bool { return i.BuildDate == "2026-10-02" }},
		{"no stamp keeps dirty unknown", Info{}, stamp(),
			func(i Info) bool { return i.VCSDirty == nil && !i.Dirty() }},
		{"modified true", Info{VCSDirty: &no}, stamp("vcs.modified", "true"),
			func(i Info) bool { return i.Dirty() }},
		{"modified false", Info{VCSDirty: &yes}, stamp("vcs.modified", "false"),
			func(i Info) bool { return i.VCSDirty != nil && !i.Dirty() }},
		{"garbage modified ignored", Info{VCSDirty: &yes}, stamp("vcs.modified", "perhaps"),
			func(i Info) bool { return i.Dirty() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.base.merge(tt.bi); !tt.check(got) {
				t.Fatalf("merge = %+v", got)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.AppName != AppName || info.Version != Version || info.GoVersion == "" {
		t.Fatalf("Get = %+v", info)
	}
}

func TestString(t *testing.T) {
	dirty := true
	s := Info{AppName: "draftsite", Version: "1.2.0", Commit: "abc", VCSDirty: &dirty}.String()
	if !strings.HasPrefix(s, "draftsite 1.2.0 (commit=abc,") || !strings.HasSuffix(s, "dirty=true)") {
		t.Fatalf("String = %q", s)
	}
}
