// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"sync"
	"sync/atomic"
)

// visibilityMode is the tool visibility of a server.
type visibilityMode int

const (
	// visibilityRestricted exposes only the minimal lazy tool set.
	visibilityRestricted visibilityMode = iota
	// visibilityFull exposes every tool. It is terminal.
	visibilityFull
)

// String implements fmt.Stringer.
func (m visibilityMode) String() string {
	if m == visibilityFull {
		return "full"
	}
	return "restricted"
}

// visibilityState is the server-wide visibility switch plus the one-shot
// tools/list_changed flag. It is shared by every session of a server.
type visibilityState struct {
	mu            sync.Mutex
	mode          visibilityMode
	pendingNotify bool
}

// newVisibilityState starts restricted in lazy mode and full otherwise.
func newVisibilityState(lazy bool) *visibilityState {
	v := &visibilityState{mode: visibilityFull}
	if lazy {
		v.mode = visibilityRestricted
	}
	return v
}

// current returns the mode at the instant of the call.
func (v *visibilityState) current() visibilityMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// reveal switches to full visibility. It reports whether a transition
// happened; only a transition arms the notification.
func (v *visibilityState) reveal() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode == visibilityFull {
		return false
	}
	v.mode = visibilityFull
	v.pendingNotify = true
	return true
}

// takeNotification reports whether a notification is armed and disarms it.
func (v *visibilityState) takeNotification() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	pending := v.pendingNotify
	v.pendingNotify = false
	return pending
}

// revealMarker rides in a request context and records whether that
// request performed the restricted to full transition.
type revealMarker struct {
	revealed atomic.Bool
}

type revealMarkerKey struct{}

// withRevealMarker attaches a fresh marker to ctx.
func withRevealMarker(ctx context.Context) (context.Context, *revealMarker) {
	marker := &revealMarker{}
	return context.WithValue(ctx, revealMarkerKey{}, marker), marker
}

// markRevealed flags the request carried by ctx as the revealing one.
func markRevealed(ctx context.Context) {
	if marker, ok := ctx.Value(revealMarkerKey{}).(*revealMarker); ok {
		marker.revealed.Store(true)
	}
}
