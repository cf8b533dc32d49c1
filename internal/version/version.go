// Package version holds build metadata for the marketfeed binaries.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/rickgao/marketfeed/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/marketfeed/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/marketfeed/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/ingestor
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown" // UTC, RFC 3339
)

// String returns "version (commit) built time".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// LogAttrs returns the build metadata as slog key/value pairs.
func LogAttrs() []any {
	return []any{"version", Version, "commit", Commit, "build_time", BuildTime}
}
