// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sceneforge-studio/sceneforge/lib/clock"
	"github.com/sceneforge-studio/sceneforge/lib/version"
	"github.com/sceneforge-studio/sceneforge/room"
	"github.com/sceneforge-studio/sceneforge/wire"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPongTimeout  = 60 * time.Second
)

// Config holds the server parameters. Hub is required.
type Config struct {
	Hub    *room.Hub
	Logger *slog.Logger
	Clock  clock.Clock

	// Store backs the explicit flush endpoint. Nil makes flush a no-op.
	Store room.Store

	// PingInterval and PongTimeout drive the duplex heartbeat. Zero
	// means the defaults.
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// Server adapts the hub to HTTP.
type Server struct {
	hub          *room.Hub
	logger       *slog.Logger
	clk          clock.Clock
	store        room.Store
	gate         Gate
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// New creates a server. The gate starts enabled.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pongTimeout := cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = defaultPongTimeout
	}
	return &Server{
		hub:          cfg.Hub,
		logger:       logger,
		clk:          clk,
		store:        cfg.Store,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
	}
}

// Gate returns the feature gate for host control.
func (s *Server) Gate() *Gate { return &s.gate }

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /v1/stats", s.gated(s.handleStats))
	mux.Handle("GET /v1/scenes/{scene}/socket", s.gated(s.handleSocket))
	mux.Handle("POST /v1/scenes/{scene}/join", s.gated(s.handleJoin))
	mux.Handle("POST /v1/scenes/{scene}/leave", s.gated(s.handleLeave))
	mux.Handle("POST /v1/scenes/{scene}/operations", s.gated(s.handleApply))
	mux.Handle("GET /v1/scenes/{scene}/operations", s.gated(s.handleHistory))
	mux.Handle("GET /v1/scenes/{scene}/snapshot", s.gated(s.handleSnapshot))
	mux.Handle("POST /v1/scenes/{scene}/presence", s.gated(s.handlePresence))
	mux.Handle("POST /v1/scenes/{scene}/control/request", s.gated(s.handleControlRequest))
	mux.Handle("POST /v1/scenes/{scene}/control/release", s.gated(s.handleControlRelease))
	mux.Handle("POST /v1/scenes/{scene}/flush", s.gated(s.handleFlush))
	return mux
}

// gated rejects requests uniformly while the kill switch is off.
func (s *Server) gated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.Enabled() {
			writeError(w, http.StatusServiceUnavailable, wire.CodeDisabled,
				"collaboration is disabled")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Full(),
	})
}

// sceneLister is the optional store surface for enumerating persisted
// scenes. The SQLite store implements it; the stats endpoint degrades
// gracefully when the configured store does not.
type sceneLister interface {
	Scenes(ctx context.Context) (map[string]uint64, error)
}

// statsReply is the stats document: live hub gauges plus, when the
// store supports enumeration, the persisted scenes with their versions.
type statsReply struct {
	room.Stats
	Persisted map[string]uint64 `json:"persisted,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reply := statsReply{Stats: s.hub.Stats()}
	if lister, ok := s.store.(sceneLister); ok {
		persisted, err := lister.Scenes(r.Context())
		if err != nil {
			s.logger.Error("list persisted scenes", "error", err)
		} else {
			reply.Persisted = persisted
		}
	}
	writeJSON(w, http.StatusOK, reply)
}

// actorFrom extracts the out-of-band actor identity.
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Scene-Actor"); actor != "" {
		return actor
	}
	return r.URL.Query().Get("actor")
}

// openRoom resolves the {scene} segment to a live room, answering the
// error itself when that fails.
func (s *Server) openRoom(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	rm, err := s.hub.GetOrCreate(r.Context(), r.PathValue("scene"))
	if err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, err.Error())
		return nil, false
	}
	return rm, true
}

// writeRoomError maps room errors to transport errors.
func writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrStaleControl):
		writeError(w, http.StatusConflict, wire.CodeStaleControl, err.Error())
	case errors.Is(err, room.ErrUnknownActor):
		writeError(w, http.StatusConflict, wire.CodeUnknownActor, err.Error())
	default:
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, wire.ErrorData{Code: code, Message: message})
}
