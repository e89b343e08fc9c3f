// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sceneforge-studio/sceneforge/collab"
	"github.com/sceneforge-studio/sceneforge/lib/testutil"
	"github.com/sceneforge-studio/sceneforge/room"
)

func TestWebhookDeliversOperations(t *testing.T) {
	t.Parallel()

	received := make(chan Delivery, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var d Delivery
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			t.Errorf("decode delivery: %v", err)
		}
		received <- d
	}))
	defer srv.Close()

	hook, err := NewWebhook(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}
	defer hook.Close()

	hook.OperationsApplied("scene_1", "a", []collab.Operation{{
		ID: "a:1", Actor: "a", Clock: 1, Kind: collab.KindFieldSet,
		Payload: &collab.FieldSet{Key: "title", Value: "Intro"},
	}}, 1, 1)
	hook.ControlChanged("scene_1", room.ControlState{Holder: "a"})

	seen := map[string]Delivery{}
	for range 2 {
		d := testutil.RequireReceive(t, received, 5*time.Second, "webhook delivery")
		seen[d.Event] = d
	}

	applied := seen["operations.applied"]
	if applied.Scene != "scene_1" || applied.Actor != "a" || len(applied.Ops) != 1 {
		t.Errorf("operations delivery: %+v", applied)
	}
	control := seen["control.changed"]
	if control.Control == nil || control.Control.Holder != "a" {
		t.Errorf("control delivery: %+v", control)
	}
}

func TestWebhookFailureDoesNotBlockCaller(t *testing.T) {
	t.Parallel()

	hook, err := NewWebhook(Config{URL: "http://127.0.0.1:1/unreachable", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}

	done := make(chan struct{})
	go func() {
		hook.OperationsApplied("scene_1", "a", nil, 1, 1)
		close(done)
	}()
	testutil.RequireClosed(t, done, time.Second, "notify returned")
	hook.Close()
}
