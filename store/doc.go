// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists scene snapshots in SQLite.
//
// Snapshots are encoded with deterministic CBOR and compressed with
// zstd before hitting the scenes table. Determinism matters: the
// content hash of the uncompressed encoding is stored alongside, and a
// save whose hash matches the stored row is skipped entirely, so
// periodic flush ticks on a quiet scene cost one SELECT and zero
// writes.
package store
