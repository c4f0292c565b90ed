// Package buildinfo reports the version of the running binary.
package buildinfo

import (
	"runtime/debug"
	"sync"
)

// Injected at build time via -ldflags "-X". When empty, Summary falls back to
// the VCS stamp the Go toolchain embeds.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

var stamp = sync.OnceValues(func() (revision, when string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			when = s.Value
		}
	}
	return revision, when
})

// Summary returns a human-readable version summary string.
func Summary() string {
	commit, date := Commit, Date
	if commit == "" && date == "" {
		commit, date = stamp()
	}
	return summarize(Version, commit, date)
}

func summarize(version, commit, date string) string {
	if version == "" {
		version = "dev"
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	switch {
	case commit != "" && date != "":
		return version + " (" + commit + " " + date + ")"
	case commit != "":
		return version + " (" + commit + ")"
	case date != "":
		return version + " (" + date + ")"
	}
	return version
}
