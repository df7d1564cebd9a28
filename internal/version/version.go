// Package version carries build metadata stamped in via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Name is the program name used in help, logs and client identifiers.
const Name = "parley"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the full `parley version` line.
func String() string {
	return fmt.Sprintf("%s %s (commit=%s, date=%s, go=%s)", Name, Version, Commit, Date, runtime.Version())
}

// UserAgent identifies parley to HTTP backends.
func UserAgent() string {
	return Name + "/" + Version
}
