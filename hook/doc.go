// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package hook forwards room activity to an external webhook.
//
// Deliveries are fire-and-forget: each notification posts from its own
// goroutine so the room's critical section never waits on the network,
// and a failed delivery is logged and dropped. The webhook is a side
// channel for pipelines (export triggers, audit trails), not a
// replication mechanism.
package hook
