// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of commsnet binaries.
package version

import (
	"fmt"
	"runtime/debug"
)

// build is overridden at link time via
// -ldflags "-X github.com/vanguard-fleet/commsnet/lib/version.build=v0.4.0".
var build = ""

// Info returns the build version: the linker-injected value when set,
// otherwise the module version from build info, otherwise "devel".
func Info() string {
	if build != "" {
		return build
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "devel"
}

// Print writes "<name> <version>" to stdout, the shared format of
// every binary's --version output.
func Print(name string) {
	fmt.Printf("%s %s\n", name, Info())
}
