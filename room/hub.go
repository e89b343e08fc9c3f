// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sceneforge-studio/sceneforge/collab"
	"github.com/sceneforge-studio/sceneforge/lib/clock"
	"github.com/sceneforge-studio/sceneforge/lib/ref"
)

// Options configures a Hub. Zero fields get working defaults; a nil
// Store means scenes start empty and are never persisted.
type Options struct {
	Clock      clock.Clock
	Logger     *slog.Logger
	Store      Store
	Events     Events
	ControlTTL time.Duration
}

// Hub is the process-wide registry of live rooms, keyed by scene id.
// The hub lock guards only the registry maps; it is never held across
// store I/O or while a room's own lock is wanted.
type Hub struct {
	clk        clock.Clock
	logger     *slog.Logger
	store      Store
	events     Events
	controlTTL time.Duration

	mu        sync.Mutex
	rooms     map[string]*Room
	hydrating map[string]*hydration
}

// hydration is one in-flight store load. Concurrent GetOrCreate calls
// for the same scene wait on done instead of issuing duplicate loads.
type hydration struct {
	done chan struct{}
	room *Room
	err  error
}

// NewHub creates an empty registry.
func NewHub(opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Events == nil {
		opts.Events = NopEvents{}
	}
	if opts.ControlTTL <= 0 {
		opts.ControlTTL = DefaultControlTTL
	}
	return &Hub{
		clk:        opts.Clock,
		logger:     opts.Logger,
		store:      opts.Store,
		events:     opts.Events,
		controlTTL: opts.ControlTTL,
		rooms:      make(map[string]*Room),
		hydrating:  make(map[string]*hydration),
	}
}

// GetOrCreate returns the live room for the scene, hydrating the
// document from the store on first access. The store load runs outside
// the registry lock: a slow hydration of one scene never blocks
// lookups or creation of unrelated scenes. Concurrent calls for the
// same scene share a single load.
func (h *Hub) GetOrCreate(ctx context.Context, sceneID string) (*Room, error) {
	if _, err := ref.ParseSceneID(sceneID); err != nil {
		return nil, fmt.Errorf("open room: %w", err)
	}

	h.mu.Lock()
	if r, ok := h.rooms[sceneID]; ok {
		h.mu.Unlock()
		return r, nil
	}
	if pending, ok := h.hydrating[sceneID]; ok {
		h.mu.Unlock()
		select {
		case <-pending.done:
			return pending.room, pending.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	pending := &hydration{done: make(chan struct{})}
	h.hydrating[sceneID] = pending
	h.mu.Unlock()

	doc := collab.New(sceneID)
	var hydrateErr error
	if h.store != nil {
		snap, found, err := h.store.Load(ctx, sceneID)
		switch {
		case err != nil:
			hydrateErr = fmt.Errorf("hydrate %s: %w", sceneID, err)
		case found:
			doc = collab.FromSnapshot(snap)
			h.logger.Info("hydrated scene from store",
				"scene", sceneID, "version", snap.Version, "lamport", snap.Lamport)
		}
	}

	h.mu.Lock()
	delete(h.hydrating, sceneID)
	if hydrateErr == nil {
		pending.room = newRoom(doc, h.clk, h.logger, h.events, h.controlTTL)
		h.rooms[sceneID] = pending.room
	}
	pending.err = hydrateErr
	h.mu.Unlock()
	close(pending.done)

	return pending.room, pending.err
}

// Get returns a live room without creating one.
func (h *Hub) Get(sceneID string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[sceneID]
	return r, ok
}

// Stats is the hub-level gauge set served by the stats endpoint.
type Stats struct {
	Rooms       int `json:"rooms"`
	Clients     int `json:"clients"`
	Subscribers int `json:"subscribers"`
	DirtyRooms  int `json:"dirty_rooms"`
}

// Stats aggregates gauges across all live rooms.
func (h *Hub) Stats() Stats {
	var stats Stats
	for _, r := range h.snapshot() {
		stats.Rooms++
		stats.Clients += r.ClientCount()
		stats.Subscribers += r.SubscriberCount()
		if r.Dirty() {
			stats.DirtyRooms++
		}
	}
	return stats
}

// ExpireControl runs control TTL expiry on every room, returning the
// number of rooms whose lock moved.
func (h *Hub) ExpireControl() int {
	expired := 0
	for _, r := range h.snapshot() {
		if r.ExpireControl() {
			expired++
		}
	}
	return expired
}

// SweepPresence force-leaves idle actors in every room.
func (h *Hub) SweepPresence(maxIdle time.Duration) int {
	swept := 0
	for _, r := range h.snapshot() {
		swept += r.SweepPresence(maxIdle)
	}
	return swept
}

// FlushDirty persists every dirty room. Rooms flush independently: one
// failing store write does not stop the others, and all failures come
// back joined.
func (h *Hub) FlushDirty(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	var errs []error
	for _, r := range h.snapshot() {
		if err := r.Flush(ctx, h.store); err != nil {
			h.logger.Error("flush failed", "scene", r.SceneID(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EvictIdle drops rooms that are empty, clean, unwatched, and
// untouched for longer than maxIdle. A dirty or occupied room is never
// evicted; flush and sweep first.
func (h *Hub) EvictIdle(maxIdle time.Duration) int {
	cutoff := h.clk.Now().Add(-maxIdle)

	h.mu.Lock()
	defer h.mu.Unlock()

	evicted := 0
	for sceneID, r := range h.rooms {
		if r.idle(cutoff) {
			delete(h.rooms, sceneID)
			evicted++
			h.logger.Info("evicted idle room", "scene", sceneID)
		}
	}
	return evicted
}

// Shutdown flushes all dirty rooms before the process exits.
func (h *Hub) Shutdown(ctx context.Context) error {
	return h.FlushDirty(ctx)
}

// snapshot copies the room list so per-room work runs outside the
// registry lock.
func (h *Hub) snapshot() []*Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}
