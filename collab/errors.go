// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package collab

import "fmt"

// ValidationError reports a malformed operation: unknown kind, payload
// that does not match the kind's schema, or a broken identity triple
// (op id, actor, clock). Validation failures are local to one
// operation — the rest of a batch still applies.
type ValidationError struct {
	// OpID is the offending operation's id, when one was present.
	OpID string

	// Reason describes what failed validation.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.OpID == "" {
		return "invalid operation: " + e.Reason
	}
	return fmt.Sprintf("invalid operation %s: %s", e.OpID, e.Reason)
}
