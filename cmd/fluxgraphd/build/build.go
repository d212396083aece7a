// Package build carries the version information stamped in at link time,
// surfaced by fluxgraphd's /build_info endpoint.
package build

import "github.com/prometheus/common/version"

// Info mirrors the fields prometheus/common/version tracks, in a form
// that marshals cleanly to JSON for HTTP callers.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	Branch    string `json:"branch"`
	BuildUser string `json:"buildUser"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// GetVersion returns the build Info set by -ldflags -X
// github.com/prometheus/common/version.{Version,Revision,...} at link time.
func GetVersion() Info {
	return Info{
		Version:   version.Version,
		Revision:  version.Revision,
		Branch:    version.Branch,
		BuildUser: version.BuildUser,
		BuildDate: version.BuildDate,
		GoVersion: version.GoVersion,
	}
}
