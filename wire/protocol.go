// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sceneforge-studio/sceneforge/collab"
)

// Client→server message types.
const (
	// ClientPing requests a pong. The duplex transport also uses
	// websocket-level pings; this application-level ping exists so
	// clients behind strict proxies can prove liveness themselves.
	ClientPing = "ping"

	// ClientPresenceUpdate merges a partial presence patch.
	ClientPresenceUpdate = "presence.update"

	// ClientDocPull requests operations since a version, or a full
	// snapshot, without sending any edits.
	ClientDocPull = "doc.pull"

	// ClientDocApply submits an operation batch, optionally asking for
	// catch-up history and/or a fresh snapshot in the reply.
	ClientDocApply = "doc.apply"

	// ClientControlRequest asks for the scene's soft control lock.
	ClientControlRequest = "control.request"

	// ClientControlRelease gives the lock back (or leaves the queue).
	ClientControlRelease = "control.release"
)

// Server→client event names.
const (
	// EventJoined is the first event on a duplex connection: snapshot,
	// version, lamport, and the current roster.
	EventJoined = "joined"

	// EventPong answers ClientPing.
	EventPong = "pong"

	// EventDocUpdate carries accepted operations to every participant
	// of the scene, in acceptance order.
	EventDocUpdate = "doc.update"

	// EventPresenceUpdate broadcasts the changed roster.
	EventPresenceUpdate = "presence.update"

	// EventControlState reports the control lock after a transition,
	// both to the requester and as a broadcast on promotion.
	EventControlState = "control.state"

	// EventError reports a request-level failure; the connection stays
	// open.
	EventError = "error"
)

// Error codes carried in EventError data and stateless error bodies.
const (
	// CodeBadRequest covers malformed envelopes and payloads.
	CodeBadRequest = "bad_request"

	// CodeUnknownMessage is an unrecognized client message type.
	CodeUnknownMessage = "unknown_message"

	// CodeDisabled means the collaboration subsystem is gated off.
	CodeDisabled = "collaboration_disabled"

	// CodeUnknownActor is an action from an actor that never joined.
	CodeUnknownActor = "unknown_actor"

	// CodeStaleControl is a lock release from an actor with no control
	// involvement.
	CodeStaleControl = "stale_control"

	// CodePersistence is a store failure surfaced from flush.
	CodePersistence = "persistence"
)

// ClientMessage is the client→server envelope.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeClientMessage parses and minimally validates an envelope.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("client message missing type")
	}
	return msg, nil
}

// Event is the server→client envelope. Timestamp is assigned inside
// the room's critical section, so equal ordering of events and
// timestamps is guaranteed per scene.
type Event struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewEvent builds an event envelope.
func NewEvent(name string, timestamp time.Time, data any) Event {
	return Event{Event: name, Timestamp: timestamp, Data: data}
}

// DocApply is the payload of ClientDocApply.
type DocApply struct {
	Operations []collab.Operation `json:"operations"`

	// Since, when set, asks for the effective operations after that
	// version in the reply (reconnect reconciliation).
	Since *uint64 `json:"since,omitempty"`

	// IncludeSnapshot asks for a full snapshot in the reply.
	IncludeSnapshot bool `json:"include_snapshot,omitempty"`
}

// DocPull is the payload of ClientDocPull: DocApply without edits.
type DocPull struct {
	Since           *uint64 `json:"since,omitempty"`
	IncludeSnapshot bool    `json:"include_snapshot,omitempty"`
}

// ControlRequest is the payload of ClientControlRequest.
type ControlRequest struct {
	// TTLSeconds bounds how long the lock is held before the host
	// promotes the next waiter. Zero means the server default.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// ErrorData is the data of an EventError envelope and the body of
// stateless error responses.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
