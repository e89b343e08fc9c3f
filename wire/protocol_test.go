// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"testing"

	"github.com/sceneforge-studio/sceneforge/collab"
)

func TestDecodeClientMessage(t *testing.T) {
	t.Parallel()

	msg, err := DecodeClientMessage([]byte(`{"type": "ping"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.Type != ClientPing {
		t.Errorf("type: got %q, want %q", msg.Type, ClientPing)
	}

	if _, err := DecodeClientMessage([]byte(`{"payload": {}}`)); err == nil {
		t.Error("missing type should fail")
	}
	if _, err := DecodeClientMessage([]byte(`not json`)); err == nil {
		t.Error("malformed JSON should fail")
	}
}

func TestDocApplyPayloadDecodes(t *testing.T) {
	t.Parallel()

	raw := `{
		"operations": [
			{"op_id": "a:1", "actor": "a", "clock": 1, "kind": "field.set", "payload": {"key": "title", "value": "Intro"}}
		],
		"since": 4,
		"include_snapshot": true
	}`

	var apply DocApply
	if err := json.Unmarshal([]byte(raw), &apply); err != nil {
		t.Fatalf("decode DocApply: %v", err)
	}
	if len(apply.Operations) != 1 {
		t.Fatalf("operations: got %d, want 1", len(apply.Operations))
	}
	if err := apply.Operations[0].Validate(); err != nil {
		t.Errorf("operation: %v", err)
	}
	if apply.Since == nil || *apply.Since != 4 {
		t.Errorf("since: got %v, want 4", apply.Since)
	}
	if !apply.IncludeSnapshot {
		t.Error("include_snapshot not decoded")
	}
	if _, ok := apply.Operations[0].Payload.(*collab.FieldSet); !ok {
		t.Errorf("payload type: got %T, want *collab.FieldSet", apply.Operations[0].Payload)
	}
}

func TestEventEnvelopeShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Event{Event: EventPong})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["event"] != "pong" {
		t.Errorf("event: got %v", decoded["event"])
	}
	if _, ok := decoded["timestamp"]; !ok {
		t.Error("timestamp field missing from envelope")
	}
}
