// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultEventQueueSize is the number of undelivered events a session buffers.
const defaultEventQueueSize = 100

// sseSession is one connected push-channel client.
type sseSession struct {
	id         string
	eventQueue chan string   // Formatted events waiting for the stream writer.
	done       chan struct{} // Closed when the session ends.
	closeOnce  sync.Once
	createdAt  time.Time

	// ctx is cancelled when the client disconnects so in-flight tool calls
	// stop polling for a dead peer.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSSESession(parent context.Context, now time.Time) *sseSession {
	ctx, cancel := context.WithCancel(parent)
	return &sseSession{
		id:         uuid.NewString(),
		eventQueue: make(chan string, defaultEventQueueSize),
		done:       make(chan struct{}),
		createdAt:  now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// enqueue hands an event to the stream writer. It reports false when the
// session is already closed.
func (s *sseSession) enqueue(event string) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.eventQueue <- event:
		return true
	case <-s.done:
		return false
	}
}

// close ends the session. It is safe to call more than once.
func (s *sseSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
}

// sessionRegistry maps session ids to live sessions. The lock only guards
// map access and is never held while delivering an event.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sseSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*sseSession)}
}

func (r *sessionRegistry) add(session *sseSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.id] = session
}

func (r *sessionRegistry) remove(id string) (*sseSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return session, ok
}

func (r *sessionRegistry) get(id string) (*sseSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// snapshot returns the sessions registered at the instant of the call.
func (r *sessionRegistry) snapshot() []*sseSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*sseSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

func (r *sessionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// closeAll removes and closes every session.
func (r *sessionRegistry) closeAll() int {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*sseSession)
	r.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
	return len(sessions)
}
