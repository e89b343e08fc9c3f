// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sceneforge-studio/sceneforge/collab"
	"github.com/sceneforge-studio/sceneforge/room"
)

const defaultTimeout = 10 * time.Second

// Delivery is the JSON body posted for every notification.
type Delivery struct {
	Event   string             `json:"event"`
	Scene   string             `json:"scene"`
	Actor   string             `json:"actor,omitempty"`
	Version uint64             `json:"version,omitempty"`
	Lamport uint64             `json:"lamport,omitempty"`
	Ops     []collab.Operation `json:"operations,omitempty"`
	Control *room.ControlState `json:"control,omitempty"`
}

// Webhook posts room activity to a single endpoint. It implements
// room.Events.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

// Config holds the webhook parameters. URL is required.
type Config struct {
	URL     string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewWebhook creates a webhook sink.
func NewWebhook(cfg Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("hook: URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Webhook{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// OperationsApplied posts the effective operations of a batch.
func (w *Webhook) OperationsApplied(sceneID, actor string, ops []collab.Operation, version, lamport uint64) {
	w.deliver(Delivery{
		Event:   "operations.applied",
		Scene:   sceneID,
		Actor:   actor,
		Version: version,
		Lamport: lamport,
		Ops:     ops,
	})
}

// ControlChanged posts a control lock transition.
func (w *Webhook) ControlChanged(sceneID string, state room.ControlState) {
	w.deliver(Delivery{
		Event:   "control.changed",
		Scene:   sceneID,
		Control: &state,
	})
}

// Close waits for in-flight deliveries to finish.
func (w *Webhook) Close() {
	w.wg.Wait()
}

// deliver posts asynchronously; the caller holds a room lock and must
// not wait on the network.
func (w *Webhook) deliver(d Delivery) {
	body, err := json.Marshal(d)
	if err != nil {
		w.logger.Error("webhook encode failed", "event", d.Event, "error", err)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
		if err != nil {
			w.logger.Warn("webhook delivery failed",
				"event", d.Event, "scene", d.Scene, "error", err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 300 {
			w.logger.Warn("webhook delivery rejected",
				"event", d.Event, "scene", d.Scene, "status", resp.StatusCode)
		}
	}()
}
