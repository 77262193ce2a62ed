package version

import (
	"fmt"
	"runtime/debug"
)

// Populated via -ldflags "-X stockcast/internal/version.Version=..." at
// release build time. A plain source build reports dev and falls back to the
// VCS revision embedded by the toolchain, when present.
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// String renders the build identity on one line.
func String() string {
	commit := Commit
	date := BuildDate
	if commit == "" {
		commit, date = vcsInfo()
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("stockcast %s (commit %s, built %s)", Version, commit, date)
}

func vcsInfo() (revision, builtAt string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			builtAt = setting.Value
		}
	}
	return revision, builtAt
}
