// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package collab

// register is one last-writer-wins cell. The zero value (clock 0,
// actor "") loses to any valid operation, so registers can be created
// lazily on first write.
type register[T any] struct {
	value   T
	clock   uint64
	actor   string
	removed bool
}

// wins reports whether a write stamped (clock, actor) replaces the
// register's current contents: clock is primary, actor id is the
// deterministic tie-break. Equal stamps lose, which is what makes
// replaying an already-seen operation a no-op.
func (r *register[T]) wins(clock uint64, actor string) bool {
	if clock != r.clock {
		return clock > r.clock
	}
	return actor > r.actor
}

// set unconditionally overwrites the register. Callers check wins
// first.
func (r *register[T]) set(value T, clock uint64, actor string, removed bool) {
	r.value = value
	r.clock = clock
	r.actor = actor
	r.removed = removed
}

// state exports the register for a snapshot. The value is passed
// through a caller-supplied copier so snapshot readers can never alias
// live document state.
func (r *register[T]) state(copyValue func(T) T) RegisterState[T] {
	return RegisterState[T]{
		Value:   copyValue(r.value),
		Clock:   r.clock,
		Actor:   r.actor,
		Removed: r.removed,
	}
}

// RegisterState is the materialized form of one register. The clock
// and actor stamps ride along with the value: they are what makes a
// persisted snapshot rehydrate into a document that keeps merging
// correctly against late-arriving operations.
type RegisterState[T any] struct {
	Value   T      `json:"value"`
	Clock   uint64 `json:"clock"`
	Actor   string `json:"actor"`
	Removed bool   `json:"removed,omitempty"`
}

// Snapshot is the fully materialized state of a document: every
// register with its stamp, the ordering list, and the version/lamport
// counters. It is the unit of persistence and of initial sync; the
// store only ever sees this structure.
type Snapshot struct {
	SceneID   string                         `json:"scene_id"`
	Fields    map[string]RegisterState[any]  `json:"fields"`
	Meta      map[string]RegisterState[any]  `json:"meta"`
	Nodes     map[string]RegisterState[Node] `json:"nodes"`
	Lines     map[string]RegisterState[Line] `json:"lines"`
	LineOrder RegisterState[[]string]        `json:"line_order"`
	Version   uint64                         `json:"version"`
	Lamport   uint64                         `json:"lamport"`
}

// copyAny deep-copies JSON-shaped data (maps, slices, scalars).
func copyAny(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = copyAny(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyAny(item)
		}
		return out
	default:
		return v
	}
}

// copyNode deep-copies a node record.
func copyNode(n Node) Node {
	out := n
	if n.Data != nil {
		out.Data = copyAny(n.Data).(map[string]any)
	}
	return out
}

// copyLine deep-copies a line record.
func copyLine(l Line) Line {
	out := l
	if l.Data != nil {
		out.Data = copyAny(l.Data).(map[string]any)
	}
	return out
}

// copyOrder copies the ordering list.
func copyOrder(order []string) []string {
	if order == nil {
		return nil
	}
	out := make([]string, len(order))
	copy(out, order)
	return out
}
