// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sceneforge-studio/sceneforge/lib/ref"
)

// Kind discriminates the operation tagged union. The set is closed:
// payload decoding and validation accept exactly these values.
type Kind string

const (
	// KindFieldSet writes one scene field register.
	KindFieldSet Kind = "field.set"

	// KindMetaSet writes one scene metadata register.
	KindMetaSet Kind = "meta.set"

	// KindNodeUpsert creates or replaces one node in the scene graph.
	KindNodeUpsert Kind = "node.upsert"

	// KindNodeRemove tombstones one node.
	KindNodeRemove Kind = "node.remove"

	// KindLineSet creates or replaces one script line.
	KindLineSet Kind = "line.set"

	// KindLineRemove tombstones one script line.
	KindLineRemove Kind = "line.remove"

	// KindLineReorder replaces the entire line ordering list.
	KindLineReorder Kind = "line.reorder"
)

// Operation is one atomic, attributable edit intent. Its id is the
// canonical "actor:counter" pair, globally unique; its clock is the
// actor's Lamport counter, strictly increasing per actor.
type Operation struct {
	ID        string    `json:"op_id"`
	Actor     string    `json:"actor"`
	Clock     uint64    `json:"clock"`
	Kind      Kind      `json:"kind"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	// decodeErr records a payload that failed to decode for this
	// operation's kind. Deferred to Validate so that one malformed
	// operation rejects itself, not the batch it arrived in.
	decodeErr error
}

// UnmarshalJSON decodes the envelope and then the payload according to
// the kind tag. An unknown kind or a payload that does not match the
// kind's schema is not a decode error — the operation is kept with the
// failure recorded, and Validate reports it. This keeps batch decoding
// all-or-nothing only for envelope syntax, never for a single bad
// operation.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"op_id"`
		Actor     string          `json:"actor"`
		Clock     uint64          `json:"clock"`
		Kind      Kind            `json:"kind"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	op.ID = raw.ID
	op.Actor = raw.Actor
	op.Clock = raw.Clock
	op.Kind = raw.Kind
	op.Timestamp = raw.Timestamp
	op.Payload, op.decodeErr = decodePayload(raw.Kind, raw.Payload)
	return nil
}

// Validate checks the operation's identity triple and payload schema.
// Returns a *ValidationError describing the first failure, or nil.
func (op *Operation) Validate() error {
	if op.decodeErr != nil {
		return &ValidationError{OpID: op.ID, Reason: op.decodeErr.Error()}
	}

	actor, err := ref.ParseActorID(op.Actor)
	if err != nil {
		return &ValidationError{OpID: op.ID, Reason: err.Error()}
	}
	if op.Clock == 0 {
		return &ValidationError{OpID: op.ID, Reason: "clock must be >= 1"}
	}
	if op.ID == "" {
		return &ValidationError{Reason: "missing op_id"}
	}
	idActor, _, err := ref.SplitOperationID(op.ID)
	if err != nil {
		return &ValidationError{OpID: op.ID, Reason: err.Error()}
	}
	if idActor != actor {
		return &ValidationError{
			OpID:   op.ID,
			Reason: fmt.Sprintf("op_id actor %q does not match actor %q", idActor, actor),
		}
	}

	if op.Payload == nil {
		return &ValidationError{OpID: op.ID, Reason: "missing payload"}
	}
	if op.Payload.Kind() != op.Kind {
		return &ValidationError{
			OpID:   op.ID,
			Reason: fmt.Sprintf("payload kind %q does not match kind %q", op.Payload.Kind(), op.Kind),
		}
	}
	if err := op.Payload.validate(); err != nil {
		return &ValidationError{OpID: op.ID, Reason: err.Error()}
	}
	return nil
}

// Payload is the kind-specific body of an operation. The union is
// closed: the unexported validate method keeps implementations inside
// this package, so every payload shape the engine can see is one it
// can validate.
type Payload interface {
	// Kind returns the operation kind this payload belongs to.
	Kind() Kind

	validate() error
}

// decodePayload decodes raw payload bytes for the given kind.
func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing payload for kind %q", kind)
	}

	var payload Payload
	switch kind {
	case KindFieldSet:
		payload = &FieldSet{}
	case KindMetaSet:
		payload = &MetaSet{}
	case KindNodeUpsert:
		payload = &NodeUpsert{}
	case KindNodeRemove:
		payload = &NodeRemove{}
	case KindLineSet:
		payload = &LineSet{}
	case KindLineRemove:
		payload = &LineRemove{}
	case KindLineReorder:
		payload = &LineReorder{}
	default:
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("decode %q payload: %w", kind, err)
	}
	return payload, nil
}

// Node is one node in the scene graph: a beat, a branch point, a
// camera direction — the engine does not interpret the type, it only
// merges the record.
type Node struct {
	ID    string         `json:"id"`
	Type  string         `json:"type,omitempty"`
	Title string         `json:"title,omitempty"`
	X     float64        `json:"x,omitempty"`
	Y     float64        `json:"y,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Line is one script line: who speaks, what they say, and any
// editor-defined extras.
type Line struct {
	ID      string         `json:"id"`
	Speaker string         `json:"speaker,omitempty"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// FieldSet writes one named scene field.
type FieldSet struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Kind implements Payload.
func (*FieldSet) Kind() Kind { return KindFieldSet }

func (p *FieldSet) validate() error {
	if p.Key == "" {
		return fmt.Errorf("field.set requires a key")
	}
	return nil
}

// MetaSet writes one named metadata entry.
type MetaSet struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Kind implements Payload.
func (*MetaSet) Kind() Kind { return KindMetaSet }

func (p *MetaSet) validate() error {
	if p.Key == "" {
		return fmt.Errorf("meta.set requires a key")
	}
	return nil
}

// NodeUpsert creates or replaces one scene graph node.
type NodeUpsert struct {
	Node Node `json:"node"`
}

// Kind implements Payload.
func (*NodeUpsert) Kind() Kind { return KindNodeUpsert }

func (p *NodeUpsert) validate() error {
	if p.Node.ID == "" {
		return fmt.Errorf("node.upsert requires node.id")
	}
	return nil
}

// NodeRemove tombstones one scene graph node.
type NodeRemove struct {
	NodeID string `json:"node_id"`
}

// Kind implements Payload.
func (*NodeRemove) Kind() Kind { return KindNodeRemove }

func (p *NodeRemove) validate() error {
	if p.NodeID == "" {
		return fmt.Errorf("node.remove requires node_id")
	}
	return nil
}

// LineSet creates or replaces one script line.
type LineSet struct {
	Line Line `json:"line"`
}

// Kind implements Payload.
func (*LineSet) Kind() Kind { return KindLineSet }

func (p *LineSet) validate() error {
	if p.Line.ID == "" {
		return fmt.Errorf("line.set requires line.id")
	}
	return nil
}

// LineRemove tombstones one script line.
type LineRemove struct {
	LineID string `json:"line_id"`
}

// Kind implements Payload.
func (*LineRemove) Kind() Kind { return KindLineRemove }

func (p *LineRemove) validate() error {
	if p.LineID == "" {
		return fmt.Errorf("line.remove requires line_id")
	}
	return nil
}

// LineReorder replaces the entire line ordering list.
type LineReorder struct {
	Order []string `json:"order"`
}

// Kind implements Payload.
func (*LineReorder) Kind() Kind { return KindLineReorder }

func (p *LineReorder) validate() error {
	seen := make(map[string]struct{}, len(p.Order))
	for _, id := range p.Order {
		if id == "" {
			return fmt.Errorf("line.reorder order contains an empty id")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("line.reorder order contains duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
