// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	t.Parallel()

	// Maps built in different insertion orders must encode identically.
	first := map[string]any{"title": "Intro", "mood": "tense", "beat": int64(3)}
	second := map[string]any{"beat": int64(3), "mood": "tense", "title": "Intro"}

	a, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal(first): %v", err)
	}
	b, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal(second): %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("deterministic encoding violated: %x != %x", a, b)
	}
}

func TestRoundTripAnyMaps(t *testing.T) {
	t.Parallel()

	original := map[string]any{
		"nested": map[string]any{"x": 1.5, "y": -2.0},
		"list":   []any{"a", "b"},
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded top level: got %T, want map[string]any", decoded)
	}
	nested, ok := top["nested"].(map[string]any)
	if !ok {
		t.Fatalf("decoded nested: got %T, want map[string]any", top["nested"])
	}
	if nested["x"] != 1.5 {
		t.Errorf("nested x: got %v, want 1.5", nested["x"])
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	t.Parallel()

	type wide struct {
		A string `cbor:"a"`
		B int    `cbor:"b"`
	}
	type narrow struct {
		A string `cbor:"a"`
	}

	data, err := Marshal(wide{A: "kept", B: 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out narrow
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal with extra field: %v", err)
	}
	if out.A != "kept" {
		t.Errorf("A: got %q, want %q", out.A, "kept")
	}
}
