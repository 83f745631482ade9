// Package version provides build and version information for cranbench.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the current version of cranbench.
// Set via ldflags at build time, or defaults to dev:
// -X github.com/Aman-CERP/cranbench/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary (set at runtime).
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
	Bleve     string `json:"bleve"`
	SQLite    string `json:"sqlite"`
}

// Module paths of the libraries whose versions decide index and ledger
// compatibility.
const (
	bleveModule  = "github.com/blevesearch/bleve/v2"
	sqliteModule = "modernc.org/sqlite"
)

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("cranbench %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
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
		Bleve:     Dependency(bleveModule),
		SQLite:    Dependency(sqliteModule),
	}
}

// Dependency returns the version of module linked into the binary, or
// "unknown" when build information is unavailable.
func Dependency(module string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, d := range info.Deps {
		if d.Path != module {
			continue
		}
		if d.Replace != nil {
			return d.Replace.Version
		}
		return d.Version
	}
	return "unknown"
}

// Libraries returns the index and ledger library versions on one line.
func Libraries() string {
	return fmt.Sprintf("bleve %s, sqlite %s", Dependency(bleveModule), Dependency(sqliteModule))
}
