// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sceneforge-studio/sceneforge/collab"
	"github.com/sceneforge-studio/sceneforge/room"
	"github.com/sceneforge-studio/sceneforge/wire"
)

// joinRequest is the stateless join body. Everything is optional; an
// empty body joins with a bare presence entry.
type joinRequest struct {
	Presence room.PresencePatch `json:"presence"`
	Headless bool               `json:"headless"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reply, err := rm.Join(actorFrom(r), req.Presence, req.Headless)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	left := rm.Leave(actorFrom(r))
	writeJSON(w, http.StatusOK, map[string]bool{"left": left})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	var req wire.DocApply
	if !decodeBody(w, r, &req) {
		return
	}
	reply, err := rm.ApplyOperations(actorFrom(r), req.Operations, req.Since, req.IncludeSnapshot)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	since := uint64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "since must be an unsigned integer")
			return
		}
		since = parsed
	}

	ops, current, lamport, inWindow := rm.History(since)
	reply := room.ApplyReply{
		Results:    []collab.Result{},
		Version:    current,
		Lamport:    lamport,
		Operations: ops,
	}
	if !inWindow {
		// The log window no longer reaches back; hand over a snapshot.
		snap := rm.DocumentSnapshot()
		reply.Snapshot = &snap
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rm.DocumentSnapshot())
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	var patch room.PresencePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	roster, err := rm.UpdatePresence(actorFrom(r), patch)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room.RosterUpdate{Roster: roster})
}

func (s *Server) handleControlRequest(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	var req wire.ControlRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := rm.RequestControl(actorFrom(r), time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleControlRelease(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	state, err := rm.ReleaseControl(actorFrom(r))
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"flushed": false})
		return
	}
	if err := rm.Flush(r.Context(), s.store); err != nil {
		s.logger.Error("explicit flush failed", "scene", rm.SceneID(), "error", err)
		writeError(w, http.StatusInternalServerError, wire.CodePersistence, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"flushed": true})
}

// decodeBody decodes a JSON request body into v; an empty body leaves
// v at its zero value. Answers the error itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "malformed JSON body: "+err.Error())
		return false
	}
	return true
}
