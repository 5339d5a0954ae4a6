// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Agent Ethos
// binaries. It centralizes the one legitimate raw-stderr pattern that
// exists before the structured logger is initialized: fatal error
// reporting from main(). All other output in service code goes through
// the slog logger.
package process
