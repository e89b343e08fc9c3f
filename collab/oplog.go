// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package collab

// DefaultOpLogLimit is the number of effective operations a document
// retains for reconnect catch-up. A reconnecting client whose last
// seen version fell out of the window receives a full snapshot
// instead, so the limit trades memory for how long a client can be
// gone and still catch up incrementally.
const DefaultOpLogLimit = 512

// logEntry pairs an effective operation with the document version it
// produced.
type logEntry struct {
	version uint64
	op      Operation
}

// opLog is the bounded ordered log of effective operations. Only
// operations that changed a register are recorded; rejected and stale
// operations never enter the log.
type opLog struct {
	limit   int
	entries []logEntry
}

func newOpLog(limit int) *opLog {
	if limit <= 0 {
		limit = DefaultOpLogLimit
	}
	return &opLog{limit: limit}
}

// record appends an effective operation, evicting the oldest entry
// when the window is full.
func (l *opLog) record(version uint64, op Operation) {
	l.entries = append(l.entries, logEntry{version: version, op: op})
	if len(l.entries) > l.limit {
		// Shift rather than reslice so the backing array does not pin
		// evicted operations.
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit]
	}
}

// since returns the operations recorded after the given version, in
// order. current is the document's present version. ok is false when
// the window no longer reaches back to version — the caller missed
// evicted operations and needs a full snapshot.
func (l *opLog) since(version, current uint64) ([]Operation, bool) {
	if version >= current {
		return nil, true
	}
	if len(l.entries) == 0 || l.entries[0].version > version+1 {
		return nil, false
	}
	var ops []Operation
	for _, entry := range l.entries {
		if entry.version > version {
			ops = append(ops, entry.op)
		}
	}
	return ops, true
}
