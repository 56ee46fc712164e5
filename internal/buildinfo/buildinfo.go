// Package buildinfo exposes version metadata stamped at link time, e.g.
// -ldflags "-X patrolnav/internal/buildinfo.Version=v1.2.0".
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the build metadata. An unstamped commit falls back to the VCS
// revision recorded by the Go toolchain.
func Info() map[string]string {
	commit := Commit
	if commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}
	return map[string]string{
		"version":   Version,
		"commit":    commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}
