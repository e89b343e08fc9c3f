// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package room hosts live collaboration sessions. A Room owns exactly
// one scene document plus its volatile session state: the presence
// roster, the soft control lock, and the broadcast subscribers. All
// room state is guarded by a single mutex, so operations from any
// number of transports apply in one total order per scene.
//
// Rooms never own timers. Expiry work (control lock TTL, presence
// liveness, persistence flush, idle eviction) happens only when the
// host process calls the explicit entry points, with time supplied by
// an injected clock. That keeps every timing behavior deterministic
// under test.
//
// The Hub is the process-wide registry mapping scene ids to rooms,
// hydrating documents from the Store on first access.
package room
