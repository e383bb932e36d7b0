// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibilityState_InitialMode(t *testing.T) {
	assert.Equal(t, visibilityRestricted, newVisibilityState(true).current())
	assert.Equal(t, visibilityFull, newVisibilityState(false).current())
}

func TestVisibilityState_RevealOnce(t *testing.T) {
	v := newVisibilityState(true)
	assert.False(t, v.takeNotification())

	assert.True(t, v.reveal())
	assert.Equal(t, visibilityFull, v.current())
	assert.False(t, v.reveal(), "full is terminal")

	assert.True(t, v.takeNotification())
	assert.False(t, v.takeNotification(), "notification is one-shot")
}

func TestVisibilityState_FullNeverNotifies(t *testing.T) {
	v := newVisibilityState(false)
	assert.False(t, v.reveal())
	assert.False(t, v.takeNotification())
}

func TestVisibilityState_ConcurrentReveal(t *testing.T) {
	v := newVisibilityState(true)

	var transitions, notifications atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.reveal() {
				transitions.Add(1)
			}
			if v.takeNotification() {
				notifications.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), transitions.Load())
	assert.Equal(t, int32(1), notifications.Load())
}
