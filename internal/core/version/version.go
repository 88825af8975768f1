// Package version reports build metadata stamped in with -ldflags
package version

// BuildInfo describes the running binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set with -ldflags "-X reddcrawl/internal/core/version.version=v0.1.0 ..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build information for service
func Info(service string) BuildInfo {
	return BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
}
