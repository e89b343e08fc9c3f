// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strconv"
	"strings"
)

// ActorID identifies one connected participant in a scene room
// (e.g., "writer/amira" or "bot/continuity-check"). Actor identity is
// established by the caller out of band — the engine performs no
// authentication — but the id is still validated so it is safe to use
// as a map key, an operation attribution, and an LWW tie-breaker.
//
// The same character rules as [SceneID] apply. Because actor ids break
// clock ties lexicographically, two replicas must agree on the exact
// byte sequence; validation rejects anything that could be normalized
// differently by different clients.
type ActorID struct {
	id string
}

// ParseActorID validates and wraps a raw actor id string.
func ParseActorID(raw string) (ActorID, error) {
	if err := validateID("actor id", raw); err != nil {
		return ActorID{}, err
	}
	return ActorID{id: raw}, nil
}

// String returns the actor id string.
func (a ActorID) String() string { return a.id }

// IsZero reports whether the ActorID is the zero value (uninitialized).
func (a ActorID) IsZero() bool { return a.id == "" }

// OperationID builds the globally unique operation id for this actor's
// counter value, in the canonical "actor:counter" form.
func (a ActorID) OperationID(counter uint64) string {
	return a.id + ":" + strconv.FormatUint(counter, 10)
}

// SplitOperationID splits a canonical "actor:counter" operation id into
// its actor and counter parts. Returns an error if the id is malformed
// or the actor part fails validation.
func SplitOperationID(opID string) (ActorID, uint64, error) {
	sep := strings.LastIndexByte(opID, ':')
	if sep < 0 {
		return ActorID{}, 0, fmt.Errorf("operation id missing ':counter' suffix: %q", opID)
	}
	actor, err := ParseActorID(opID[:sep])
	if err != nil {
		return ActorID{}, 0, fmt.Errorf("operation id %q: %w", opID, err)
	}
	counter, err := strconv.ParseUint(opID[sep+1:], 10, 64)
	if err != nil {
		return ActorID{}, 0, fmt.Errorf("operation id %q: parse counter: %w", opID, err)
	}
	return actor, counter, nil
}
