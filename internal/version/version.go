/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import "strings"

// Version is the current version of Cadence.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/cadence/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Short returns the version without any pre-release suffix.
func Short() string {
	if idx := strings.IndexAny(Version, "-+"); idx >= 0 {
		return Version[:idx]
	}
	return Version
}
