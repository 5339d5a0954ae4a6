// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// ethos-server is the Ethos HTTP JSON API: agent registration and
// authentication, vouch submission and listing, flag moderation, and
// the reputation leaderboard, backed by the SQLite ledger.
//
// Configuration comes from --config or the ETHOS_CONFIG environment
// variable (see lib/config); a .env file in the working directory is
// loaded into the environment first if present. Mutating endpoints
// require an agent API key as an Authorization bearer token. The
// server shuts down gracefully on SIGINT/SIGTERM.
package main
