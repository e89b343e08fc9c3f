// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds shared test helpers.
//
// The channel helpers wrap select-with-timeout so transport tests
// waiting on broadcast fan-out never hang a test binary on a missed
// send; the timeout is a hang safety valve, not an assertion about
// timing.
package testutil
