// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the collaboration protocol envelopes shared by
// both transport surfaces.
//
// Clients send {type, payload} messages; the server answers and
// broadcasts {event, timestamp, data} envelopes. The duplex websocket
// and the stateless HTTP mirror speak the same payload shapes, so a
// headless exporter polling over HTTP and a live editor holding a
// socket cannot drift apart.
//
// Client message types: ping, presence.update, doc.pull, doc.apply,
// control.request, control.release. Server events: joined, pong,
// doc.update, presence.update, control.state, error.
//
// Actor identity and display name travel out of band (query
// parameters or headers at connect/request time), never inside
// document payloads.
package wire
