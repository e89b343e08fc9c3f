// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package server

import "sync/atomic"

// Gate is the collaboration kill switch. It starts enabled; flipping
// it off makes every /v1 entry point answer the uniform disabled
// payload without touching live rooms.
type Gate struct {
	disabled atomic.Bool
}

// Enabled reports whether the subsystem accepts requests.
func (g *Gate) Enabled() bool { return !g.disabled.Load() }

// Enable turns the subsystem on.
func (g *Gate) Enable() { g.disabled.Store(false) }

// Disable turns the subsystem off.
func (g *Gate) Disable() { g.disabled.Store(true) }
