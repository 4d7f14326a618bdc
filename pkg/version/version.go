// Package version reports geoidx build information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the geoidx release. Set via ldflags:
//
//	-X github.com/Aman-CERP/geoidx/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build metadata, set via ldflags. When left unset, Commit and Date fall
// back to the VCS stamp the Go toolchain embeds.
var (
	Commit = "unknown"
	Date   = "unknown"

	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line version string.
func String() string {
	info := GetInfo()
	s := fmt.Sprintf("geoidx %s (commit: %s, built: %s, go: %s)", info.Version, info.Commit, info.Date, info.GoVersion)
	if info.Modified {
		s += " [modified]"
	}
	return s
}

// Short returns just the version.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return applyVCS(info, bi.Settings)
}

// applyVCS fills unset fields from the vcs.* build settings.
func applyVCS(info BuildInfo, settings []debug.BuildSetting) BuildInfo {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value[:min(len(s.Value), 12)]
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}
