// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sceneforge-studio/sceneforge/collab"
	"github.com/sceneforge-studio/sceneforge/room"
	"github.com/sceneforge-studio/sceneforge/wire"
)

// envelope mirrors wire.Event with the data left raw for per-event
// decoding.
type envelope struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func dial(t *testing.T, ts *httptest.Server, scene, actor string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/v1/scenes/" + scene + "/socket?actor=" + actor
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s as %s: %v", scene, actor, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return e
}

// readUntil drains events until one with the given name arrives.
func readUntil(t *testing.T, conn *websocket.Conn, name string) envelope {
	t.Helper()
	for range 20 {
		e := readEvent(t, conn)
		if e.Event == name {
			return e
		}
	}
	t.Fatalf("no %s event within 20 messages", name)
	panic("unreachable")
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := wire.ClientMessage{Type: msgType}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		msg.Payload = encoded
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

func TestSocketJoinAndCrossClientBroadcast(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	a := dial(t, ts, "scene_1", "a")

	joined := readEvent(t, a)
	if joined.Event != wire.EventJoined {
		t.Fatalf("first event: %q", joined.Event)
	}
	var reply room.JoinReply
	if err := json.Unmarshal(joined.Data, &reply); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if len(reply.Roster) != 1 || reply.Roster[0].Actor != "a" {
		t.Errorf("joined roster: %+v", reply.Roster)
	}

	b := dial(t, ts, "scene_1", "b")
	readUntil(t, b, wire.EventJoined)

	// a sees b arrive.
	roster := readUntil(t, a, wire.EventPresenceUpdate)
	var update room.RosterUpdate
	if err := json.Unmarshal(roster.Data, &update); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(update.Roster) != 2 {
		t.Errorf("roster after second join: %+v", update.Roster)
	}

	// a's edit reaches b as a doc.update broadcast.
	send(t, a, wire.ClientDocApply, wire.DocApply{
		Operations: []collab.Operation{fieldSet("a", 1, "title", "Intro")},
	})
	broadcast := readUntil(t, b, wire.EventDocUpdate)
	var docUpdate room.DocUpdate
	if err := json.Unmarshal(broadcast.Data, &docUpdate); err != nil {
		t.Fatalf("decode doc.update: %v", err)
	}
	if docUpdate.Actor != "a" || len(docUpdate.Operations) != 1 || docUpdate.Version != 1 {
		t.Errorf("broadcast: %+v", docUpdate)
	}

	// a also gets its direct reply carrying per-operation results.
	direct := readUntil(t, a, wire.EventDocUpdate)
	var applyReply room.ApplyReply
	if err := json.Unmarshal(direct.Data, &applyReply); err == nil && applyReply.Results != nil {
		if !applyReply.Results[0].Applied {
			t.Errorf("direct reply results: %+v", applyReply.Results)
		}
	}
}

func TestStatelessApplyReachesDuplexSubscriber(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	a := dial(t, ts, "scene_1", "a")
	readUntil(t, a, wire.EventJoined)

	call(t, ts, http.MethodPost, "/v1/scenes/scene_1/join", "exporter", nil)
	resp, body := call(t, ts, http.MethodPost, "/v1/scenes/scene_1/operations", "exporter", wire.DocApply{
		Operations: []collab.Operation{fieldSet("exporter", 1, "title", "From REST")},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stateless apply: %d (%s)", resp.StatusCode, body)
	}

	broadcast := readUntil(t, a, wire.EventDocUpdate)
	var docUpdate room.DocUpdate
	if err := json.Unmarshal(broadcast.Data, &docUpdate); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if docUpdate.Actor != "exporter" {
		t.Errorf("broadcast actor: %q", docUpdate.Actor)
	}
}

func TestUnknownVerbKeepsConnectionOpen(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	conn := dial(t, ts, "scene_1", "a")
	readUntil(t, conn, wire.EventJoined)

	send(t, conn, "bogus.verb", nil)
	errEvent := readUntil(t, conn, wire.EventError)
	var errData wire.ErrorData
	if err := json.Unmarshal(errEvent.Data, &errData); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if errData.Code != wire.CodeUnknownMessage {
		t.Errorf("code: %q", errData.Code)
	}

	// The connection survives the bad verb.
	send(t, conn, wire.ClientPing, nil)
	readUntil(t, conn, wire.EventPong)
}

func TestControlStateBroadcastOnSocket(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	a := dial(t, ts, "scene_1", "a")
	readUntil(t, a, wire.EventJoined)
	b := dial(t, ts, "scene_1", "b")
	readUntil(t, b, wire.EventJoined)

	send(t, a, wire.ClientControlRequest, wire.ControlRequest{TTLSeconds: 60})
	send(t, b, wire.ClientControlRequest, wire.ControlRequest{TTLSeconds: 60})

	// b queued; a releases; b observes itself promoted.
	readUntil(t, b, wire.EventControlState)
	send(t, a, wire.ClientControlRelease, nil)

	for range 20 {
		e := readUntil(t, b, wire.EventControlState)
		var state room.ControlState
		if err := json.Unmarshal(e.Data, &state); err != nil {
			t.Fatalf("decode control.state: %v", err)
		}
		if state.Holder == "b" {
			return
		}
	}
	t.Fatal("b never observed its promotion")
}

func TestSocketRejectedWhileDisabled(t *testing.T) {
	t.Parallel()

	ts, srv := newTestServer(t)
	srv.Gate().Disable()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/scenes/scene_1/socket?actor=a"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded while disabled")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("handshake response: %+v", resp)
	}
	resp.Body.Close()
}
