// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// maxIDLength bounds every identifier accepted at a boundary. Scene and
// actor ids end up as map keys, log fields, and database columns; an
// unbounded id is an invitation for abuse.
const maxIDLength = 128

// SceneID identifies one collaboratively edited scene document
// (e.g., "act1/market-ambush"). Scene ids are assigned by the studio
// application that owns the narrative project; the collaboration engine
// treats them as opaque keys into the room table and the store.
//
// A valid scene id is non-empty, at most 128 bytes, and contains only
// ASCII letters, digits, and the separators '/', '_', '-', and '.'.
type SceneID struct {
	id string
}

// ParseSceneID validates and wraps a raw scene id string.
func ParseSceneID(raw string) (SceneID, error) {
	if err := validateID("scene id", raw); err != nil {
		return SceneID{}, err
	}
	return SceneID{id: raw}, nil
}

// String returns the scene id string.
func (s SceneID) String() string { return s.id }

// IsZero reports whether the SceneID is the zero value (uninitialized).
func (s SceneID) IsZero() bool { return s.id == "" }

// validateID applies the shared identifier rules. The label names the
// identifier kind in error messages ("scene id", "actor id").
func validateID(label, raw string) error {
	if raw == "" {
		return fmt.Errorf("empty %s", label)
	}
	if len(raw) > maxIDLength {
		return fmt.Errorf("%s exceeds %d bytes: %q", label, maxIDLength, raw[:maxIDLength])
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '/' || c == '_' || c == '-' || c == '.':
		default:
			return fmt.Errorf("%s contains invalid byte 0x%02x: %q", label, c, raw)
		}
	}
	if raw[0] == '/' || raw[len(raw)-1] == '/' {
		return fmt.Errorf("%s must not begin or end with '/': %q", label, raw)
	}
	return nil
}
