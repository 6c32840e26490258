/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version is set at build time via ldflags:
//
//	-X github.com/salahatech/KFSH-Ordering-sub001/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Info is the build information reported by `kfshscheduler version` and /healthz.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information of the running binary.
func Get() Info {
	info := Info{Version: Version, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				info.Commit = s.Value[:7]
			}
		}
	}
	return info
}

// String formats Info for the CLI.
func (i Info) String() string {
	parts := []string{"kfshscheduler " + i.Version}
	if i.Commit != "" {
		parts = append(parts, "("+i.Commit+")")
	}
	return fmt.Sprintf("%s %s", strings.Join(parts, " "), i.GoVersion)
}
