package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	Major = 0
	Minor = 1
	Patch = 0
)

// PreRelease is appended to the version when set. It may be overridden at
// link time with -ldflags "-X".
var PreRelease = "pre"

// String returns the semver version string, including the vcs revision the
// binary was built from when that is known.
func String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		b.WriteString("-" + PreRelease)
	}
	if rev := vcsRevision(); rev != "" {
		b.WriteString("+" + rev)
	}
	return b.String()
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += ".dirty"
	}
	return rev
}
