// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"

	"github.com/sceneforge-studio/sceneforge/collab"
)

// Store persists scene snapshots. The hub loads through it on first
// access to a scene and rooms flush through it when dirty.
type Store interface {
	// Load returns the stored snapshot for the scene, with found=false
	// when the scene has never been saved.
	Load(ctx context.Context, sceneID string) (snap collab.Snapshot, found bool, err error)

	// Save writes the snapshot, replacing any previous one.
	Save(ctx context.Context, snap collab.Snapshot) error
}

// Events receives notifications about room activity, for side channels
// like webhooks. Callbacks run inside the room's critical section and
// must not block; implementations hand work off to their own
// goroutines.
type Events interface {
	// OperationsApplied fires after a batch changed the document. Only
	// the effective operations are reported, in acceptance order.
	OperationsApplied(sceneID, actor string, operations []collab.Operation, version, lamport uint64)

	// ControlChanged fires after any visible control lock transition.
	ControlChanged(sceneID string, state ControlState)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) OperationsApplied(string, string, []collab.Operation, uint64, uint64) {}
func (NopEvents) ControlChanged(string, ControlState)                                  {}
