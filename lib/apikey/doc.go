// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package apikey mints and verifies bearer credentials for registered
// agents. A key has the form:
//
//	ethos_<key id>_<secret>
//
// where the key id is 8 random bytes hex-encoded and the secret is 32
// random bytes base32-encoded without padding. The key id is stored in
// plaintext and indexed for lookup; the secret is stored only as an
// argon2id hash with a per-credential salt. Verification recomputes
// the hash and compares in constant time, so a database read never
// yields a usable key and lookup cost does not reveal whether the key
// id exists.
package apikey
