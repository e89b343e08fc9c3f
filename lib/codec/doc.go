// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the canonical CBOR encoding used for
// persisted scene snapshots.
//
// Snapshots are content-hashed to detect redundant saves, so the same
// logical document state must always encode to the same bytes. The
// encoder is therefore configured for Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. The decoder ignores unknown fields for
// forward compatibility with older snapshot rows.
package codec
