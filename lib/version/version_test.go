// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package version

import "testing"

func TestStringPrefersInjectedVersion(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "v9.9.9-test"
	if got := String(); got != "v9.9.9-test" {
		t.Errorf("String() = %q, want %q", got, "v9.9.9-test")
	}
}

func TestStringNeverEmpty(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = ""
	if got := String(); got == "" {
		t.Error("String() returned empty version")
	}
}
