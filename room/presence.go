// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "time"

// Presence is one participant's volatile session state. It lives only
// in the room; nothing here is ever persisted or merged into the
// document.
type Presence struct {
	Actor        string    `json:"actor"`
	DisplayName  string    `json:"display_name,omitempty"`
	Cursor       any       `json:"cursor,omitempty"`
	Selection    any       `json:"selection,omitempty"`
	Focus        string    `json:"focus,omitempty"`
	Typing       bool      `json:"typing,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	Headless     bool      `json:"headless,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// PresencePatch is a partial presence update. Pointer fields
// distinguish "unset" from "set to the zero value"; Cursor and
// Selection are free-form client state and replace wholesale when
// non-nil.
type PresencePatch struct {
	DisplayName  *string  `json:"display_name,omitempty"`
	Cursor       any      `json:"cursor,omitempty"`
	Selection    any      `json:"selection,omitempty"`
	Focus        *string  `json:"focus,omitempty"`
	Typing       *bool    `json:"typing,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// apply merges the patch and refreshes the liveness stamp.
func (p *Presence) apply(patch PresencePatch, now time.Time) {
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Cursor != nil {
		p.Cursor = patch.Cursor
	}
	if patch.Selection != nil {
		p.Selection = patch.Selection
	}
	if patch.Focus != nil {
		p.Focus = *patch.Focus
	}
	if patch.Typing != nil {
		p.Typing = *patch.Typing
	}
	if patch.Capabilities != nil {
		p.Capabilities = append([]string(nil), patch.Capabilities...)
	}
	p.LastSeen = now
}
