// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source injected into every component that reads
// the wall clock or schedules periodic work.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed. If d <= 0, the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker delivering ticks on its C channel at
	// the given interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. Read ticks from C and call Stop when
// done. The C channel has capacity 1; ticks are dropped, not queued,
// when the consumer falls behind.
type Ticker struct {
	// C delivers ticks.
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No ticks are delivered after Stop
// returns. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
