package httpkit

import (
	"runtime/debug"
)

// Version is the library version, set at build time using -ldflags.
var Version = "dev"

// VersionWithCommit returns the version plus the VCS revision when the
// binary carries build info.
func VersionWithCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			rev := setting.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}
			return Version + "-" + rev
		}
	}
	return Version
}
