// Package version provides build and version information for ragstore.
package version

import (
	"fmt"
	"runtime"
)

// Build information, overridden with -ldflags at build time:
//
//	-X github.com/Aman-CERP/ragstore/pkg/version.Version=v0.3.0
//	-X github.com/Aman-CERP/ragstore/pkg/version.Commit=$(git rev-parse --short HEAD)
//	-X github.com/Aman-CERP/ragstore/pkg/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line version string with all build info.
func String() string {
	return fmt.Sprintf("ragstore %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
