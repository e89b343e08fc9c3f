// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "errors"

var (
	// ErrUnknownActor is returned for room actions from an actor that
	// has not joined (or was swept for inactivity).
	ErrUnknownActor = errors.New("actor has not joined this scene")

	// ErrStaleControl is returned for a control release from an actor
	// that neither holds the lock nor waits for it.
	ErrStaleControl = errors.New("actor neither holds nor awaits control")
)
