// Package buildinfo holds build-time metadata kept apart from user configuration
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// devVersion is the version of a binary built without -ldflags
const devVersion = "dev"

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// New returns build info for the ldflags-injected version and date. A
// missing version falls back to the module version recorded by the Go
// toolchain, and the commit comes from VCS stamping when present.
func New(version, buildDate string) Info {
	info := Info{Version: version, BuildDate: buildDate}
	if info.Version == "" {
		info.Version = devVersion
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	info.Commit = vcsRevision(bi.Settings)
	return info
}

func vcsRevision(settings []debug.BuildSetting) string {
	var revision string
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if revision != "" && dirty {
		revision += "-dirty"
	}
	return revision
}

// Release is the identifier used for error reports
func (i Info) Release() string {
	return "voicecap@" + strings.TrimPrefix(i.Version, "v")
}

// String is the text printed by --version
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Version)
	if i.Commit != "" {
		b.WriteString(" (" + i.Commit + ")")
	}
	if i.BuildDate != "" {
		b.WriteString(" built " + i.BuildDate)
	}
	return b.String()
}
