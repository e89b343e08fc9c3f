// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sceneforge-studio/sceneforge/lib/clock"
	"github.com/sceneforge-studio/sceneforge/room"
	"github.com/sceneforge-studio/sceneforge/wire"
)

const (
	writeTimeout = 10 * time.Second

	// outboundBuffer holds direct replies waiting for the write pump.
	outboundBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser editors connect cross-origin from the studio shell; actor
	// authentication happens upstream of this service.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleSocket runs one duplex connection: join on connect, read loop
// dispatching client messages, write pump draining broadcasts and
// direct replies, forced leave on disconnect or heartbeat loss.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.openRoom(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		s.logger.Warn("websocket upgrade failed", "scene", rm.SceneID(), "error", err)
		return
	}

	patch := room.PresencePatch{}
	if name := r.URL.Query().Get("name"); name != "" {
		patch.DisplayName = &name
	}
	headless := r.URL.Query().Get("headless") == "true"

	reply, err := rm.Join(actor, patch, headless)
	if err != nil {
		data, _ := json.Marshal(wire.NewEvent(wire.EventError, s.clk.Now(), wire.ErrorData{
			Code: wire.CodeBadRequest, Message: err.Error(),
		}))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(data)),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	sess := &session{
		conn:     conn,
		room:     rm,
		actor:    actor,
		logger:   s.logger.With("scene", rm.SceneID(), "actor", actor),
		clk:      s.clk,
		outbound: make(chan wire.Event, outboundBuffer),
		done:     make(chan struct{}),
	}

	events, cancelSub := rm.Subscribe()
	defer func() {
		cancelSub()
		rm.Leave(actor)
		conn.Close()
	}()

	sess.reply(wire.EventJoined, reply)

	go sess.writePump(events, s.pingInterval)
	defer close(sess.done)

	sess.readLoop(s.pongTimeout)
}

// session is one live duplex connection.
type session struct {
	conn   *websocket.Conn
	room   *room.Room
	actor  string
	logger *slog.Logger
	clk    clock.Clock

	outbound chan wire.Event
	done     chan struct{}
}

// reply queues a direct event for this client only.
func (s *session) reply(name string, data any) {
	event := wire.NewEvent(name, s.clk.Now(), data)
	select {
	case s.outbound <- event:
	default:
		s.logger.Warn("dropping direct reply for slow connection", "event", name)
	}
}

// replyError queues an error event; the connection stays open.
func (s *session) replyError(code, message string) {
	s.reply(wire.EventError, wire.ErrorData{Code: code, Message: message})
}

// readLoop consumes client messages until the connection drops or the
// peer misses the heartbeat window.
func (s *session) readLoop(pongTimeout time.Duration) {
	s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("connection lost", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		s.dispatch(data)
	}
}

// dispatch routes one client message. Failures answer with an error
// event and keep the connection open.
func (s *session) dispatch(data []byte) {
	msg, err := wire.DecodeClientMessage(data)
	if err != nil {
		s.replyError(wire.CodeBadRequest, err.Error())
		return
	}

	switch msg.Type {
	case wire.ClientPing:
		s.reply(wire.EventPong, nil)

	case wire.ClientPresenceUpdate:
		var patch room.PresencePatch
		if !s.decodePayload(msg.Payload, &patch) {
			return
		}
		if _, err := s.room.UpdatePresence(s.actor, patch); err != nil {
			s.roomError(err)
		}

	case wire.ClientDocPull:
		var pull wire.DocPull
		if !s.decodePayload(msg.Payload, &pull) {
			return
		}
		reply, err := s.room.ApplyOperations(s.actor, nil, pull.Since, pull.IncludeSnapshot)
		if err != nil {
			s.roomError(err)
			return
		}
		s.reply(wire.EventDocUpdate, reply)

	case wire.ClientDocApply:
		var apply wire.DocApply
		if !s.decodePayload(msg.Payload, &apply) {
			return
		}
		reply, err := s.room.ApplyOperations(s.actor, apply.Operations, apply.Since, apply.IncludeSnapshot)
		if err != nil {
			s.roomError(err)
			return
		}
		s.reply(wire.EventDocUpdate, reply)

	case wire.ClientControlRequest:
		var req wire.ControlRequest
		if !s.decodePayload(msg.Payload, &req) {
			return
		}
		state, err := s.room.RequestControl(s.actor, time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			s.roomError(err)
			return
		}
		s.reply(wire.EventControlState, state)

	case wire.ClientControlRelease:
		state, err := s.room.ReleaseControl(s.actor)
		if err != nil {
			s.roomError(err)
			return
		}
		s.reply(wire.EventControlState, state)

	default:
		s.replyError(wire.CodeUnknownMessage, "unknown message type "+msg.Type)
	}
}

func (s *session) decodePayload(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.replyError(wire.CodeBadRequest, "malformed payload: "+err.Error())
		return false
	}
	return true
}

func (s *session) roomError(err error) {
	switch {
	case errors.Is(err, room.ErrStaleControl):
		s.replyError(wire.CodeStaleControl, err.Error())
	case errors.Is(err, room.ErrUnknownActor):
		s.replyError(wire.CodeUnknownActor, err.Error())
	default:
		s.replyError(wire.CodeBadRequest, err.Error())
	}
}

// writePump is the only goroutine writing to the connection. It drains
// broadcasts and direct replies, and keeps the heartbeat going; a
// write failure closes the connection, which unblocks the read loop.
func (s *session) writePump(events <-chan wire.Event, pingInterval time.Duration) {
	ticker := s.clk.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if !s.write(event) {
				return
			}
		case event := <-s.outbound:
			if !s.write(event) {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) write(event wire.Event) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(event); err != nil {
		s.conn.Close()
		return false
	}
	return true
}
