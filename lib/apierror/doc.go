// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierror defines the error taxonomy shared between the
// ledger and the HTTP gateway. Storage and scoring code returns typed
// errors from this package; the gateway maps them to HTTP status codes
// and a JSON body without inspecting error strings.
//
// Internal errors are deliberately opaque at the API boundary: the
// detail string returned to clients for an unclassified error is a
// generic message, and the real error is only ever logged server-side.
package apierror
