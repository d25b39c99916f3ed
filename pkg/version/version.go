// Package version reports the researchsearch build.
//
// Release builds inject the values with
//
//	-ldflags "-X github.com/Aman-CERP/researchsearch/pkg/version.Version=v1.2.0
//	          -X github.com/Aman-CERP/researchsearch/pkg/version.Commit=abc1234
//	          -X github.com/Aman-CERP/researchsearch/pkg/version.Date=2026-01-05T10:00:00Z"
//
// Builds without ldflags fall back to the module version and VCS stamps that
// the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Injected at link time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// GoVersion is the toolchain that built the binary.
var GoVersion = runtime.Version()

// BuildInfo is the JSON shape of `researchsearch version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

var (
	embeddedOnce sync.Once
	embedded     BuildInfo
)

// readEmbedded collects what the toolchain stamped into the binary.
func readEmbedded() BuildInfo {
	embeddedOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		embedded = fromBuildInfo(bi)
	})
	return embedded
}

func fromBuildInfo(bi *debug.BuildInfo) BuildInfo {
	var info BuildInfo
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 7 {
				info.Commit = info.Commit[:7]
			}
		case "vcs.time":
			info.Date = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// GetInfo returns the build, preferring injected values.
func GetInfo() BuildInfo {
	return merge(BuildInfo{Version: Version, Commit: Commit, Date: Date}, readEmbedded())
}

func merge(injected, fallback BuildInfo) BuildInfo {
	info := injected
	if info.Version == "dev" && fallback.Version != "" {
		info.Version = fallback.Version
	}
	if info.Commit == "unknown" && fallback.Commit != "" {
		info.Commit = fallback.Commit
		info.Modified = fallback.Modified
	}
	if info.Date == "unknown" && fallback.Date != "" {
		info.Date = fallback.Date
	}
	info.GoVersion = GoVersion
	info.OS = runtime.GOOS
	info.Arch = runtime.GOARCH
	return info
}

// Short returns the version alone.
func Short() string {
	return GetInfo().Version
}

// String returns a one-line description of the build.
func String() string {
	info := GetInfo()
	commit := info.Commit
	if info.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("researchsearch %s (commit: %s, built: %s, go: %s)",
		info.Version, commit, info.Date, info.GoVersion)
}
