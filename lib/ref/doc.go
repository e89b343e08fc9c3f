// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier types for SceneForge's
// collaboration engine.
//
// Identifiers arrive as raw strings at system boundaries (URL path
// segments, websocket query parameters, persisted rows) and are parsed
// into value types exactly once, at that boundary. Interior code works
// with [SceneID] and [ActorID] values and never re-validates.
//
// Both types are immutable value types whose zero value is invalid;
// use IsZero to check.
package ref
