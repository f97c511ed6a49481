// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/pandeptwidyaop/pm2-remote/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info returns build metadata for the /api/version endpoint.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"go_version": runtime.Version(),
	}
}

// String is the one-line banner printed by the CLI and at startup.
func String() string {
	return fmt.Sprintf("pm2-remote %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}
