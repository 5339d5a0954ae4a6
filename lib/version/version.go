// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the release version of this build. Overridden at build
// time via:
//
//	go build -ldflags "-X github.com/agent-ethos/ethos/lib/version.Version=v1.2.3"
var Version = ""

// String returns the effective version string: the ldflags-injected
// Version if set, otherwise the module version from build info,
// otherwise "devel".
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "devel"
}

// Print writes "<binary> <version>" to stdout. Intended for --version
// flag handling in main(); this and lib/process are the only places
// that write raw output instead of using the structured logger.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, String())
}
