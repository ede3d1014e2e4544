// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package version holds build information for the apcold binaries.
// Values are injected at build time via -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time, for example:
//
//	go build -ldflags "-X github.com/aplane-algo/apcold/internal/version.Version=0.3.0"
var (
	// Version is the semantic version ("0.3.0" or "0.3.0-dev")
	Version = "dev"

	// GitCommit is the short commit hash
	GitCommit = "unknown"

	// BuildTime is the RFC3339 build timestamp
	BuildTime = "unknown"
)

// String returns the --version line for a binary.
func String() string {
	commit := GitCommit
	if commit == "unknown" {
		commit = vcsRevision()
	}
	return fmt.Sprintf("%s (commit: %s, built: %s, %s/%s)",
		Version, commit, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// vcsRevision falls back to the revision stamped by the go tool when the
// binary was built without ldflags.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 7 {
				return s.Value[:7]
			}
			return s.Value
		}
	}
	return "unknown"
}
