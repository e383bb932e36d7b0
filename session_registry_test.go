// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSESession_EnqueueAndClose(t *testing.T) {
	session := newSSESession(context.Background(), time.Now())
	_, err := uuid.Parse(session.id)
	require.NoError(t, err)

	assert.True(t, session.enqueue("first"))
	assert.Equal(t, "first", <-session.eventQueue)

	session.close()
	session.close()
	assert.False(t, session.enqueue("late"))
	assert.ErrorIs(t, session.ctx.Err(), context.Canceled)
}

func TestSSESession_ParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	session := newSSESession(parent, time.Now())
	cancel()
	assert.ErrorIs(t, session.ctx.Err(), context.Canceled)
}

func TestSSESession_CloseUnblocksFullQueue(t *testing.T) {
	session := newSSESession(context.Background(), time.Now())
	for i := 0; i < defaultEventQueueSize; i++ {
		require.True(t, session.enqueue("event"))
	}

	done := make(chan bool, 1)
	go func() { done <- session.enqueue("overflow") }()
	session.close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("enqueue stayed blocked after close")
	}
}

func TestSessionRegistry(t *testing.T) {
	registry := newSessionRegistry()
	first := newSSESession(context.Background(), time.Now())
	second := newSSESession(context.Background(), time.Now())
	registry.add(first)
	registry.add(second)

	got, ok := registry.get(first.id)
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 2, registry.len())
	assert.ElementsMatch(t, []*sseSession{first, second}, registry.snapshot())

	removed, ok := registry.remove(first.id)
	require.True(t, ok)
	assert.Same(t, first, removed)
	_, ok = registry.remove(first.id)
	assert.False(t, ok)
	_, ok = registry.get(first.id)
	assert.False(t, ok)

	assert.Equal(t, 1, registry.closeAll())
	assert.Equal(t, 0, registry.len())
	assert.False(t, second.enqueue("after shutdown"))
}

func TestSessionRegistry_Concurrent(t *testing.T) {
	registry := newSessionRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session := newSSESession(context.Background(), time.Now())
			registry.add(session)
			_ = registry.snapshot()
			registry.remove(session.id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, registry.len())
}
