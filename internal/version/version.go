// Package version exposes the build identity stamped into the binary,
// served on the /version endpoint and logged at startup.
package version

import "runtime"

// Set at build time via -ldflags; the zero values mark a local build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build identity as served to clients.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the stamped build identity plus the Go runtime version.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}
