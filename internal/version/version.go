// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/krakenbook/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/krakenbook/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/krakenbook/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/bookwatch
package version

import (
	"runtime"
	"runtime/debug"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + revision() + ") built " + BuildTime
}

// LogAttrs returns the build info as slog key/value pairs.
func LogAttrs() []any {
	return []any{
		"version", Version,
		"commit", revision(),
		"go", runtime.Version(),
	}
}

// revision falls back to the VCS stamp embedded by the go tool when Commit
// was not set through ldflags.
func revision() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return Commit
}
