// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build version information for Agent Ethos
// binaries. The version string is set at build time via -ldflags; when
// unset, the module version from Go build info is used as a fallback
// so that `go install`-built binaries still report something useful.
package version
