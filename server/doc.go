// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the collaboration hub over HTTP: a duplex
// websocket per (scene, actor) plus a stateless JSON mirror of the
// same verbs. Both surfaces are thin adapters over the identical Room
// API, so a poller and a socket holder observe the same side effects.
//
// Scene ids may contain slashes; in URLs they travel percent-encoded
// inside the single {scene} path segment. Actor identity arrives out
// of band: the X-Scene-Actor header or the actor query parameter.
//
// A feature gate covers the whole /v1 surface. When disabled, every
// entry point on both transports answers 503 with the same payload.
package server
