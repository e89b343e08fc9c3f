// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sceneforge-studio/sceneforge/collab"
	"github.com/sceneforge-studio/sceneforge/lib/clock"
	"github.com/sceneforge-studio/sceneforge/lib/ref"
	"github.com/sceneforge-studio/sceneforge/wire"
)

const (
	// DefaultControlTTL bounds a control hold when the requester does
	// not ask for a TTL.
	DefaultControlTTL = 2 * time.Minute

	// subscriberBuffer is the per-subscriber event channel depth. A
	// subscriber that falls this far behind starts losing events; the
	// transport layer is expected to resync it with doc.pull.
	subscriberBuffer = 64
)

// Room is one live collaboration session. All fields behind mu form a
// single consistency domain: document, roster, control lock, and the
// subscriber set move together, and every broadcast is stamped inside
// the critical section that produced it.
type Room struct {
	sceneID    string
	clk        clock.Clock
	logger     *slog.Logger
	events     Events
	controlTTL time.Duration

	mu           sync.Mutex
	doc          *collab.Document
	roster       map[string]*Presence
	control      controlLock
	subs         map[string]chan wire.Event
	dirty        bool
	lastActivity time.Time
}

func newRoom(doc *collab.Document, clk clock.Clock, logger *slog.Logger, events Events, controlTTL time.Duration) *Room {
	return &Room{
		sceneID:      doc.SceneID(),
		clk:          clk,
		logger:       logger.With("scene", doc.SceneID()),
		events:       events,
		controlTTL:   controlTTL,
		doc:          doc,
		roster:       make(map[string]*Presence),
		subs:         make(map[string]chan wire.Event),
		lastActivity: clk.Now(),
	}
}

// SceneID returns the scene this room hosts.
func (r *Room) SceneID() string { return r.sceneID }

// Subscribe registers a broadcast listener and returns its channel and
// a cancel function. The channel is closed by cancel, never by the
// room; cancel is idempotent.
func (r *Room) Subscribe() (<-chan wire.Event, func()) {
	ch := make(chan wire.Event, subscriberBuffer)
	id := uuid.NewString()

	r.mu.Lock()
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// JoinReply is the initial state handed to a joining client.
type JoinReply struct {
	Snapshot collab.Snapshot `json:"snapshot"`
	Version  uint64          `json:"version"`
	Lamport  uint64          `json:"lamport"`
	Roster   []Presence      `json:"roster"`
	Control  ControlState    `json:"control"`
}

// Join adds the actor to the roster, or refreshes an existing entry;
// joining twice is not an error. The reply carries everything a client
// needs to render: full snapshot, roster, and control state.
func (r *Room) Join(actor string, patch PresencePatch, headless bool) (JoinReply, error) {
	if _, err := ref.ParseActorID(actor); err != nil {
		return JoinReply{}, fmt.Errorf("join %s: %w", r.sceneID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.touchLocked()
	p, ok := r.roster[actor]
	if !ok {
		p = &Presence{Actor: actor, Headless: headless}
		r.roster[actor] = p
	}
	p.apply(patch, now)
	r.broadcastLocked(wire.EventPresenceUpdate, RosterUpdate{Roster: r.rosterLocked()})

	return JoinReply{
		Snapshot: r.doc.Snapshot(),
		Version:  r.doc.Version(),
		Lamport:  r.doc.Lamport(),
		Roster:   r.rosterLocked(),
		Control:  r.control.state(),
	}, nil
}

// Leave removes the actor, releasing any control involvement. It
// reports whether the actor was present; leaving twice is harmless.
func (r *Room) Leave(actor string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roster[actor]; !ok {
		return false
	}
	now := r.touchLocked()
	delete(r.roster, actor)
	if r.control.drop(actor, now) {
		r.controlChangedLocked()
	}
	r.broadcastLocked(wire.EventPresenceUpdate, RosterUpdate{Roster: r.rosterLocked()})
	return true
}

// DocUpdate is the broadcast data for accepted operations.
type DocUpdate struct {
	Actor      string             `json:"actor"`
	Operations []collab.Operation `json:"operations"`
	Version    uint64             `json:"version"`
	Lamport    uint64             `json:"lamport"`
}

// RosterUpdate is the broadcast data for presence changes.
type RosterUpdate struct {
	Roster []Presence `json:"roster"`
}

// ApplyReply answers an operation batch (or a pull, which is a batch
// of zero). Operations is the catch-up tail when Since was in the
// log's window; Snapshot is set when asked for, or forced when the
// window no longer reaches Since.
type ApplyReply struct {
	Results    []collab.Result    `json:"results"`
	Version    uint64             `json:"version"`
	Lamport    uint64             `json:"lamport"`
	Operations []collab.Operation `json:"operations,omitempty"`
	Snapshot   *collab.Snapshot   `json:"snapshot,omitempty"`
}

// ApplyOperations merges a batch into the document and broadcasts the
// effective subset. Each operation is accepted or rejected on its own;
// a batch with zero operations is a pure pull. since, when non-nil,
// asks for the effective operations after that version.
func (r *Room) ApplyOperations(actor string, ops []collab.Operation, since *uint64, includeSnapshot bool) (ApplyReply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.roster[actor]
	if !ok {
		return ApplyReply{}, fmt.Errorf("apply to %s: %w", r.sceneID, ErrUnknownActor)
	}
	now := r.touchLocked()
	p.LastSeen = now

	results := r.doc.ApplyMany(ops)
	var applied []collab.Operation
	for i, res := range results {
		if res.Applied {
			applied = append(applied, ops[i])
		}
	}
	if len(applied) > 0 {
		r.dirty = true
		r.broadcastLocked(wire.EventDocUpdate, DocUpdate{
			Actor:      actor,
			Operations: applied,
			Version:    r.doc.Version(),
			Lamport:    r.doc.Lamport(),
		})
		r.events.OperationsApplied(r.sceneID, actor, applied, r.doc.Version(), r.doc.Lamport())
	}

	reply := ApplyReply{
		Results: results,
		Version: r.doc.Version(),
		Lamport: r.doc.Lamport(),
	}
	if since != nil {
		tail, ok := r.doc.OperationsSince(*since)
		if ok {
			reply.Operations = tail
		} else {
			// The log window no longer reaches back that far.
			includeSnapshot = true
		}
	}
	if includeSnapshot {
		snap := r.doc.Snapshot()
		reply.Snapshot = &snap
	}
	return reply, nil
}

// UpdatePresence merges a partial patch into the actor's presence and
// broadcasts the new roster.
func (r *Room) UpdatePresence(actor string, patch PresencePatch) ([]Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.roster[actor]
	if !ok {
		return nil, fmt.Errorf("presence update in %s: %w", r.sceneID, ErrUnknownActor)
	}
	now := r.touchLocked()
	p.apply(patch, now)
	roster := r.rosterLocked()
	r.broadcastLocked(wire.EventPresenceUpdate, RosterUpdate{Roster: roster})
	return roster, nil
}

// RequestControl asks for the control lock with the given TTL (zero
// means the room default). The lock is granted immediately when free,
// otherwise the actor joins the FIFO queue. The returned state shows
// the outcome either way.
func (r *Room) RequestControl(actor string, ttl time.Duration) (ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.roster[actor]
	if !ok {
		return ControlState{}, fmt.Errorf("control request in %s: %w", r.sceneID, ErrUnknownActor)
	}
	now := r.touchLocked()
	p.LastSeen = now
	if ttl <= 0 {
		ttl = r.controlTTL
	}
	if _, changed := r.control.request(actor, ttl, now); changed {
		r.controlChangedLocked()
	}
	return r.control.state(), nil
}

// ReleaseControl gives back the hold or leaves the queue, promoting
// the next waiter when the hold is released. An actor with no control
// involvement gets ErrStaleControl.
func (r *Room) ReleaseControl(actor string) (ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.roster[actor]
	if !ok {
		return ControlState{}, fmt.Errorf("control release in %s: %w", r.sceneID, ErrUnknownActor)
	}
	now := r.touchLocked()
	p.LastSeen = now
	released, changed := r.control.release(actor, now)
	if changed {
		r.controlChangedLocked()
	}
	if !released {
		return r.control.state(), fmt.Errorf("control release in %s: %w", r.sceneID, ErrStaleControl)
	}
	return r.control.state(), nil
}

// DocumentSnapshot returns the current document state without joining.
func (r *Room) DocumentSnapshot() collab.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Snapshot()
}

// History returns the effective operations after the given version,
// with ok=false when the bounded log no longer reaches back that far.
// The returned version and lamport are the document's current ones.
func (r *Room) History(since uint64) (ops []collab.Operation, version, lamport uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops, ok = r.doc.OperationsSince(since)
	return ops, r.doc.Version(), r.doc.Lamport(), ok
}

// ControlSnapshot returns the current lock state without touching it.
func (r *Room) ControlSnapshot() ControlState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.control.state()
}

// ExpireControl promotes past a holder whose TTL has lapsed. The host
// calls this on a ticker; rooms own no timers.
func (r *Room) ExpireControl() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.control.holder
	if !r.control.expire(r.clk.Now()) {
		return false
	}
	r.logger.Info("control lock expired", "holder", previous, "next", r.control.holder)
	r.controlChangedLocked()
	return true
}

// SweepPresence force-leaves every actor whose last activity is older
// than maxIdle, returning how many were removed.
func (r *Room) SweepPresence(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	cutoff := now.Add(-maxIdle)
	var swept []string
	for actor, p := range r.roster {
		if p.LastSeen.Before(cutoff) {
			swept = append(swept, actor)
		}
	}
	if len(swept) == 0 {
		return 0
	}
	lockChanged := false
	for _, actor := range swept {
		delete(r.roster, actor)
		if r.control.drop(actor, now) {
			lockChanged = true
		}
	}
	r.logger.Info("swept idle actors", "actors", strings.Join(swept, ","))
	if lockChanged {
		r.controlChangedLocked()
	}
	r.broadcastLocked(wire.EventPresenceUpdate, RosterUpdate{Roster: r.rosterLocked()})
	return len(swept)
}

// Flush persists the document when dirty. The snapshot is taken under
// the lock but the store write happens outside it, so persistence
// never stalls editing; the dirty flag survives when new operations
// landed mid-flush.
func (r *Room) Flush(ctx context.Context, store Store) error {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	snap := r.doc.Snapshot()
	r.mu.Unlock()

	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("flush %s: %w", r.sceneID, err)
	}

	r.mu.Lock()
	if r.doc.Version() == snap.Version {
		r.dirty = false
	}
	r.mu.Unlock()
	return nil
}

// Dirty reports whether the document has unpersisted changes.
func (r *Room) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// ClientCount returns the roster size.
func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roster)
}

// SubscriberCount returns the number of live broadcast listeners.
func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// idle reports whether the room can be evicted: no participants, no
// subscribers, a clean document, and untouched since cutoff. The
// roster check matters on its own: a stateless actor can stay joined
// long past any activity window, and evicting under it would silently
// drop its presence and control involvement.
func (r *Room) idle(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.dirty && len(r.roster) == 0 && len(r.subs) == 0 && r.lastActivity.Before(cutoff)
}

// touchLocked stamps activity and returns the current time.
func (r *Room) touchLocked() time.Time {
	now := r.clk.Now()
	r.lastActivity = now
	return now
}

// controlChangedLocked broadcasts the lock state and notifies hooks.
func (r *Room) controlChangedLocked() {
	state := r.control.state()
	r.broadcastLocked(wire.EventControlState, state)
	r.events.ControlChanged(r.sceneID, state)
}

// broadcastLocked stamps and fans out one event, dropping it for
// subscribers whose buffer is full.
func (r *Room) broadcastLocked(name string, data any) {
	event := wire.NewEvent(name, r.clk.Now(), data)
	for id, ch := range r.subs {
		select {
		case ch <- event:
		default:
			r.logger.Warn("dropping event for slow subscriber",
				"subscriber", id, "event", name)
		}
	}
}

// rosterLocked snapshots the roster, sorted by actor for stable
// payloads.
func (r *Room) rosterLocked() []Presence {
	roster := make([]Presence, 0, len(r.roster))
	for _, p := range r.roster {
		roster = append(roster, *p)
	}
	slices.SortFunc(roster, func(a, b Presence) int {
		return strings.Compare(a.Actor, b.Actor)
	})
	return roster
}
