// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package collab implements the conflict-free document core of the
// SceneForge collaboration engine.
//
// A [Document] materializes one narrative scene — its fields and
// metadata, the node graph, and the ordered script lines — from a
// stream of [Operation] values. Every mutable cell is a last-writer-wins
// register stamped with the operation's Lamport clock and actor id.
// A write replaces the current value iff its (clock, actor) pair is
// lexicographically greater than the register's: the clock decides,
// and the actor id breaks ties so every replica resolves the same
// conflict the same way.
//
// The merge is commutative, associative, and idempotent: two replicas
// that have seen the same set of operations — in any order, with any
// duplication — produce identical [Snapshot] output. Idempotence is
// structural rather than bookkept: a replayed operation carries the
// same (clock, actor) pair it already wrote, which is never strictly
// greater than the register it landed in, so replay changes nothing.
//
// Node and line removal writes a tombstone into the same register
// (removed flag, with the remover's clock and actor). A concurrent
// edit with a lower clock that arrives after the removal loses the
// register race and cannot resurrect the entry.
//
// Line ordering is a single register over the entire id list. Two
// actors concurrently inserting different lines therefore race the
// whole list: the losing reorder's insertion is absent from the final
// order (its line register still exists and survives). This is a
// deliberate tradeoff inherited from the scene editor's design; a
// fractional-index scheme would merge concurrent inserts at the cost
// of a much larger ordering model.
//
// A Document is pure, synchronous state with no locking of its own —
// the session coordinator serializes access.
package collab
