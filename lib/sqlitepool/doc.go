// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen sqlite with a fixed-size
// connection pool and the pragmas every SceneForge database uses.
//
// WAL mode keeps snapshot reads from blocking the flush writer, and
// the busy timeout absorbs the brief write contention that shows up
// when many rooms flush on the same shutdown tick. Individual
// connections are not safe for concurrent use — each goroutine takes
// its own connection and puts it back when done.
package sqlitepool
