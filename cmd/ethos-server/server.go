// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agent-ethos/ethos/lib/apierror"
	"github.com/agent-ethos/ethos/lib/apikey"
	"github.com/agent-ethos/ethos/lib/clock"
	"github.com/agent-ethos/ethos/lib/config"
	"github.com/agent-ethos/ethos/lib/ledger"
	"github.com/agent-ethos/ethos/lib/ratelimit"
)

// server wires the ledger, the rate limiter, and the HTTP surface
// together. One instance serves all requests.
type server struct {
	store   *ledger.Store
	limiter *ratelimit.Limiter
	cfg     *config.Config
	clock   clock.Clock
	logger  *slog.Logger
}

func newServer(store *ledger.Store, limiter *ratelimit.Limiter, cfg *config.Config, clk clock.Clock, logger *slog.Logger) *server {
	return &server{
		store:   store,
		limiter: limiter,
		cfg:     cfg,
		clock:   clk,
		logger:  logger,
	}
}

// handler builds the route table and wraps it in the middleware chain:
// request id + logging outermost, then rate limiting, then routing.
func (s *server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/agents/register", s.handleRegister)
	mux.HandleFunc("GET /api/v1/agents/me", s.handleMe)
	mux.HandleFunc("GET /api/v1/agents/profile", s.handleProfile)
	mux.HandleFunc("GET /api/v1/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/v1/vouches", s.handleListVouches)
	mux.HandleFunc("POST /api/v1/vouches", s.handleSubmitVouch)
	mux.HandleFunc("POST /api/v1/vouches/{id}/flag", s.handleFlagVouch)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.logRequests(s.rateLimit(mux))
}

// logRequests tags each request with a uuid and logs method, path,
// status, and duration.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := s.clock.Now()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", s.clock.Now().Sub(start),
		)
	})
}

// rateLimit applies the sliding-window limiter to everything except
// the health check. Authenticated clients are limited per key;
// anonymous clients per remote address.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		key := s.clientKey(r)
		if !s.limiter.Allow(key) {
			retry := s.limiter.RetryAfter(key)
			w.Header().Set("Retry-After", formatSeconds(retry))
			s.writeError(w, apierror.RateLimited())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the client for rate limiting. The key id from a
// well-formed bearer token is used without verifying the secret; a
// forged key id only rate-limits the forger.
func (s *server) clientKey(r *http.Request) string {
	if keyID, _, err := apikey.Parse(bearerToken(r)); err == nil {
		return "key:" + keyID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// authenticate resolves the request's bearer token to an agent.
func (s *server) authenticate(r *http.Request) (ledger.Agent, error) {
	token := bearerToken(r)
	if token == "" {
		return ledger.Agent{}, apierror.Unauthorized()
	}
	return s.store.Authenticate(r.Context(), token)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// decodeJSON decodes the request body strictly: unknown fields and
// trailing garbage are validation errors, matching the contract that
// malformed bodies get a 400 with a detail string.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apierror.Validation("malformed request body: %v", err)
	}
	if decoder.More() {
		return apierror.Validation("malformed request body: trailing data")
	}
	return nil
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// writeError renders the error taxonomy as {"detail": ...} with the
// mapped status. Internal errors are logged with their full cause and
// rendered generically.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := apierror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"detail": apierror.Detail(err)})
}

func formatSeconds(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
