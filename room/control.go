// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "time"

// ControlState is the externally visible shape of the soft control
// lock: who holds it, until when, and who is waiting.
type ControlState struct {
	Holder     string    `json:"holder,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitzero"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
	Queue      []string  `json:"queue,omitempty"`
}

// controlWaiter is one queued request, keeping the TTL the actor asked
// for so promotion honors it.
type controlWaiter struct {
	actor string
	ttl   time.Duration
}

// controlLock is the advisory edit lock of one room. It orders edits
// socially, not mechanically: holding it never gates ApplyOperations.
type controlLock struct {
	holder     string
	acquiredAt time.Time
	expiresAt  time.Time
	queue      []controlWaiter
}

// request grants the lock if free or already held by actor, otherwise
// enqueues. Re-requesting while holding refreshes the TTL; re-
// requesting while queued updates the queued TTL in place. changed
// reports whether the visible state moved.
func (c *controlLock) request(actor string, ttl time.Duration, now time.Time) (granted, changed bool) {
	if c.holder == actor {
		c.acquiredAt = now
		c.expiresAt = now.Add(ttl)
		return true, true
	}
	if c.holder == "" {
		c.grant(actor, ttl, now)
		return true, true
	}
	for i := range c.queue {
		if c.queue[i].actor == actor {
			c.queue[i].ttl = ttl
			return false, false
		}
	}
	c.queue = append(c.queue, controlWaiter{actor: actor, ttl: ttl})
	return false, true
}

// release drops actor's hold or queue slot. Releasing the hold
// promotes the next waiter immediately. ok is false when the actor
// neither holds nor waits.
func (c *controlLock) release(actor string, now time.Time) (ok, changed bool) {
	if c.holder == actor {
		c.promote(now)
		return true, true
	}
	for i, waiter := range c.queue {
		if waiter.actor == actor {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return true, true
		}
	}
	return false, false
}

// drop removes the actor from the lock entirely, as on leave. Unlike
// release it is not an error for an uninvolved actor.
func (c *controlLock) drop(actor string, now time.Time) bool {
	_, changed := c.release(actor, now)
	return changed
}

// expire promotes past the holder when the TTL deadline has passed.
func (c *controlLock) expire(now time.Time) (changed bool) {
	if c.holder == "" || c.expiresAt.After(now) {
		return false
	}
	c.promote(now)
	return true
}

// promote hands the lock to the next waiter, or clears it.
func (c *controlLock) promote(now time.Time) {
	if len(c.queue) == 0 {
		c.holder = ""
		c.acquiredAt = time.Time{}
		c.expiresAt = time.Time{}
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	c.grant(next.actor, next.ttl, now)
}

func (c *controlLock) grant(actor string, ttl time.Duration, now time.Time) {
	c.holder = actor
	c.acquiredAt = now
	c.expiresAt = now.Add(ttl)
}

// state snapshots the lock for broadcast.
func (c *controlLock) state() ControlState {
	state := ControlState{
		Holder:     c.holder,
		AcquiredAt: c.acquiredAt,
		ExpiresAt:  c.expiresAt,
	}
	if len(c.queue) > 0 {
		state.Queue = make([]string, len(c.queue))
		for i, waiter := range c.queue {
			state.Queue[i] = waiter.actor
		}
	}
	return state
}
