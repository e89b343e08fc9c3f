// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package collab

// Document is the materialized CRDT state of one scene. It is pure,
// synchronous computation: no I/O, no locking, no timers. The room
// layer serializes all access.
type Document struct {
	sceneID   string
	fields    map[string]*register[any]
	meta      map[string]*register[any]
	nodes     map[string]*register[Node]
	lines     map[string]*register[Line]
	lineOrder register[[]string]

	version uint64
	lamport uint64
	log     *opLog
}

// New creates an empty document for the given scene.
func New(sceneID string) *Document {
	return &Document{
		sceneID: sceneID,
		fields:  make(map[string]*register[any]),
		meta:    make(map[string]*register[any]),
		nodes:   make(map[string]*register[Node]),
		lines:   make(map[string]*register[Line]),
		log:     newOpLog(DefaultOpLogLimit),
	}
}

// FromSnapshot rehydrates a document from a persisted snapshot. The
// register stamps carried by the snapshot are restored as-is, so
// operations that were concurrent with the snapshotted state still
// merge correctly. The op log starts empty: clients older than the
// snapshot resync with a full snapshot.
func FromSnapshot(snap Snapshot) *Document {
	doc := New(snap.SceneID)
	doc.version = snap.Version
	doc.lamport = snap.Lamport
	for key, state := range snap.Fields {
		doc.fields[key] = registerFromState(state, copyAny)
	}
	for key, state := range snap.Meta {
		doc.meta[key] = registerFromState(state, copyAny)
	}
	for id, state := range snap.Nodes {
		doc.nodes[id] = registerFromState(state, copyNode)
	}
	for id, state := range snap.Lines {
		doc.lines[id] = registerFromState(state, copyLine)
	}
	doc.lineOrder = *registerFromState(snap.LineOrder, copyOrder)
	return doc
}

// registerFromState rebuilds one live register from its snapshot form.
func registerFromState[T any](state RegisterState[T], copyValue func(T) T) *register[T] {
	return &register[T]{
		value:   copyValue(state.Value),
		clock:   state.Clock,
		actor:   state.Actor,
		removed: state.Removed,
	}
}

// SceneID returns the scene this document materializes.
func (d *Document) SceneID() string { return d.sceneID }

// Version returns the count of effective operations applied.
func (d *Document) Version() uint64 { return d.version }

// Lamport returns the highest operation clock the document has seen,
// effective or not.
func (d *Document) Lamport() uint64 { return d.lamport }

// Result reports the fate of one operation in a batch. Applied is
// false both for rejected operations (Error set) and for valid
// operations that lost their register race (Error empty).
type Result struct {
	OpID    string `json:"op_id"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// ApplyOperation validates op, routes it to its register, and applies
// the last-writer-wins rule. Returns whether a register actually
// changed; version increments exactly when it did. The lamport clock
// advances for every valid operation, applied or not.
func (d *Document) ApplyOperation(op Operation) (bool, error) {
	if err := op.Validate(); err != nil {
		return false, err
	}

	if op.Clock > d.lamport {
		d.lamport = op.Clock
	}

	changed := false
	switch payload := op.Payload.(type) {
	case *FieldSet:
		changed = applyToMap(d.fields, payload.Key, op, copyAny(payload.Value), false)
	case *MetaSet:
		changed = applyToMap(d.meta, payload.Key, op, copyAny(payload.Value), false)
	case *NodeUpsert:
		changed = applyToMap(d.nodes, payload.Node.ID, op, copyNode(payload.Node), false)
	case *NodeRemove:
		// The tombstone keeps only the id: the remover's stamp guards
		// the register against lower-clocked resurrection.
		changed = applyToMap(d.nodes, payload.NodeID, op, Node{ID: payload.NodeID}, true)
	case *LineSet:
		changed = applyToMap(d.lines, payload.Line.ID, op, copyLine(payload.Line), false)
	case *LineRemove:
		changed = applyToMap(d.lines, payload.LineID, op, Line{ID: payload.LineID}, true)
	case *LineReorder:
		if d.lineOrder.wins(op.Clock, op.Actor) {
			d.lineOrder.set(copyOrder(payload.Order), op.Clock, op.Actor, false)
			changed = true
		}
	}

	if changed {
		d.version++
		d.log.record(d.version, op)
	}
	return changed, nil
}

// applyToMap applies the LWW rule to the keyed register, creating it
// on first write.
func applyToMap[T any](regs map[string]*register[T], key string, op Operation, value T, removed bool) bool {
	reg, ok := regs[key]
	if !ok {
		reg = &register[T]{}
		regs[key] = reg
	}
	if !reg.wins(op.Clock, op.Actor) {
		return false
	}
	reg.set(value, op.Clock, op.Actor, removed)
	return true
}

// ApplyMany applies a batch in array order, each operation evaluated
// independently: earlier operations are visible to later ones, and a
// validation failure rejects only its own operation.
func (d *Document) ApplyMany(ops []Operation) []Result {
	results := make([]Result, len(ops))
	for i, op := range ops {
		applied, err := d.ApplyOperation(op)
		results[i] = Result{OpID: op.ID, Applied: applied}
		if err != nil {
			results[i].Error = err.Error()
		}
	}
	return results
}

// OperationsSince returns the effective operations recorded after the
// given version, for reconnect catch-up. ok is false when the bounded
// log no longer reaches back that far; the caller should send a full
// snapshot instead.
func (d *Document) OperationsSince(version uint64) ([]Operation, bool) {
	return d.log.since(version, d.version)
}

// Snapshot materializes the full document state. All values are deep
// copies; the returned structure never aliases live registers.
func (d *Document) Snapshot() Snapshot {
	snap := Snapshot{
		SceneID:   d.sceneID,
		Fields:    make(map[string]RegisterState[any], len(d.fields)),
		Meta:      make(map[string]RegisterState[any], len(d.meta)),
		Nodes:     make(map[string]RegisterState[Node], len(d.nodes)),
		Lines:     make(map[string]RegisterState[Line], len(d.lines)),
		LineOrder: d.lineOrder.state(copyOrder),
		Version:   d.version,
		Lamport:   d.lamport,
	}
	for key, reg := range d.fields {
		snap.Fields[key] = reg.state(copyAny)
	}
	for key, reg := range d.meta {
		snap.Meta[key] = reg.state(copyAny)
	}
	for id, reg := range d.nodes {
		snap.Nodes[id] = reg.state(copyNode)
	}
	for id, reg := range d.lines {
		snap.Lines[id] = reg.state(copyLine)
	}
	return snap
}
