// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/agent-ethos/ethos/lib/apierror"
	"github.com/agent-ethos/ethos/lib/ledger"
)

// agentJSON is the wire shape of an agent. Field names match the
// existing client; created_at is RFC 3339 UTC.
type agentJSON struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Reputation  float64 `json:"reputation"`
	IsClaimed   bool    `json:"is_claimed"`
	CreatedAt   string  `json:"created_at"`
}

// vouchJSON is the wire shape of a vouch.
type vouchJSON struct {
	ID            int64  `json:"id"`
	FromAgentID   int64  `json:"from_agent_id"`
	ToAgentID     int64  `json:"to_agent_id"`
	Score         int    `json:"score"`
	Note          string `json:"note"`
	ReceiptURL    string `json:"receipt_url"`
	FlagsCount    int    `json:"flags_count"`
	CreatedAt     string `json:"created_at"`
	FromAgentName string `json:"from_agent_name"`
	ToAgentName   string `json:"to_agent_name"`
}

func renderAgent(a ledger.Agent) agentJSON {
	return agentJSON{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Reputation:  a.Reputation,
		IsClaimed:   a.IsClaimed,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func renderVouch(v ledger.Vouch) vouchJSON {
	return vouchJSON{
		ID:            v.ID,
		FromAgentID:   v.FromID,
		ToAgentID:     v.ToID,
		Score:         v.Score,
		Note:          v.Note,
		ReceiptURL:    v.ReceiptURL,
		FlagsCount:    v.Flags,
		CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339),
		FromAgentName: v.FromName,
		ToAgentName:   v.ToName,
	}
}

func renderVouches(vouches []ledger.Vouch) []vouchJSON {
	out := make([]vouchJSON, 0, len(vouches))
	for _, v := range vouches {
		out = append(out, renderVouch(v))
	}
	return out
}

// POST /api/v1/agents/register
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	agent, apiKey, err := s.store.CreateAgent(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// The key appears in this response and nowhere else, ever.
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"agent":   renderAgent(agent),
		"api_key": apiKey,
	})
}

// GET /api/v1/agents/me
func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	agent, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"agent":   renderAgent(agent),
	})
}

// GET /api/v1/agents/profile?name=
func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, apierror.Validation("name query parameter is required"))
		return
	}

	agent, err := s.store.AgentByName(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	recent, err := s.store.ListVouches(r.Context(), agent.ID, ledger.Incoming, s.cfg.Limits.VouchPageDefault)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"agent":         renderAgent(agent),
		"recentVouches": renderVouches(recent),
	})
}

// GET /api/v1/leaderboard?limit=
func (s *server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := s.parseLimit(r, s.cfg.Limits.LeaderboardDefault, s.cfg.Limits.LeaderboardMax)
	if err != nil {
		s.writeError(w, err)
		return
	}

	agents, err := s.store.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	board := make([]agentJSON, 0, len(agents))
	for _, a := range agents {
		board = append(board, renderAgent(a))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"leaderboard": board,
	})
}

// GET /api/v1/vouches?target=&limit=&direction=
func (s *server) handleListVouches(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		s.writeError(w, apierror.Validation("target query parameter is required"))
		return
	}

	limit, err := s.parseLimit(r, s.cfg.Limits.VouchPageDefault, s.cfg.Limits.VouchPageMax)
	if err != nil {
		s.writeError(w, err)
		return
	}

	direction := ledger.Incoming
	if d := r.URL.Query().Get("direction"); d != "" {
		direction = ledger.Direction(d)
	}

	agent, err := s.store.AgentByName(r.Context(), target)
	if err != nil {
		s.writeError(w, err)
		return
	}

	vouches, err := s.store.ListVouches(r.Context(), agent.ID, direction, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"vouches": renderVouches(vouches),
	})
}

// POST /api/v1/vouches
func (s *server) handleSubmitVouch(w http.ResponseWriter, r *http.Request) {
	agent, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		ToName     string `json:"to_name"`
		Score      int    `json:"score"`
		Note       string `json:"note"`
		ReceiptURL string `json:"receipt_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ToName == "" {
		s.writeError(w, apierror.Validation("to_name is required"))
		return
	}

	vouch, err := s.store.SubmitVouch(r.Context(), agent.ID, req.ToName, req.Score, req.Note, req.ReceiptURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"vouch":   renderVouch(vouch),
	})
}

// POST /api/v1/vouches/{id}/flag
func (s *server) handleFlagVouch(w http.ResponseWriter, r *http.Request) {
	agent, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	vouchID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, apierror.Validation("vouch id must be an integer"))
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.FlagVouch(r.Context(), vouchID, agent.ID, req.Reason); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /health
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// parseLimit reads the limit query parameter, applying the default
// when absent and clamping to max. A non-integer or non-positive limit
// is a validation error rather than silently clamped.
func (s *server) parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apierror.Validation("limit must be a positive integer")
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}
