// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the collaboration engine.
//
// Control-lock TTLs, presence liveness windows, heartbeat intervals,
// and idle-room eviction are all driven by wall-clock time, and all of
// them must be testable without real sleeps. Production code injects
// [Real]; tests inject [Fake] and advance it deterministically.
//
// Rooms never schedule their own timers — the service binary owns the
// tickers and calls the explicit expiry entry points. The Clock
// interface therefore stays small: Now for timestamps and deadline
// math, After and NewTicker for the host loops.
package clock
