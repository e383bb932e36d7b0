// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

const (
	defaultWaitPollInterval = 2 * time.Second
	defaultWaitTimeout      = 60
	minWaitTimeout          = 1
	maxWaitTimeout          = 300

	// statusCompleted is a pseudo-state matching any fully downloaded torrent.
	statusCompleted = "completed"
)

// waitStatuses are the states wait_for_torrent_status can wait for.
var waitStatuses = []interface{}{
	statusCompleted,
	"downloading", "uploading", "stalledDL", "stalledUP", "queuedDL", "queuedUP",
	"stoppedDL", "stoppedUP", "pausedDL", "pausedUP", "checkingDL", "checkingUP",
	"forcedDL", "forcedUP", "metaDL", "moving", "error", "missingFiles",
}

// legacyStates maps v4 state names onto their v5 equivalents.
var legacyStates = map[string]string{
	"pausedDL": "stoppedDL",
	"pausedUP": "stoppedUP",
}

func (s *Server) registerWaitTool() {
	s.toolManager.registerTool(NewTool("wait_for_torrent_status",
		WithDescription(fmt.Sprintf(
			"Poll a torrent every %v until it reaches a state or the timeout (%d-%d seconds) expires. "+
				"\"completed\" matches any fully downloaded torrent.",
			s.waitPolicy.interval, minWaitTimeout, maxWaitTimeout)),
		WithString("hash", Required(), Description("Torrent hash")),
		WithString("status", Required(), Description("Target state"), Enum(waitStatuses...)),
		WithInteger("timeout", Description("Timeout in seconds"), Default(defaultWaitTimeout)),
		withInstance(),
	), s.withBackend(s.waitForTorrentStatus))
}

// waitOutcome is the result of a successful wait.
type waitOutcome struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Waited   string  `json:"waited"`
}

// waitForTorrentStatus polls until the torrent matches the target status.
// Reaching the deadline is an error-flagged result, not a failure; a
// torrent that disappears fails the call at once.
func (s *Server) waitForTorrentStatus(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	hash, err := requiredString(args, "hash")
	if err != nil {
		return nil, err
	}
	target, err := requiredString(args, "status")
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(clampInt(intArg(args, "timeout", defaultWaitTimeout), minWaitTimeout, maxWaitTimeout)) * time.Second

	start := s.clock.Now()
	deadline := start.Add(timeout)
	for {
		torrent, err := backend.Torrent(ctx, hash)
		if err != nil {
			return nil, torrentError(hash, err)
		}
		if statusMatches(torrent, target) {
			return jsonResult(waitOutcome{
				Hash:     torrent.Hash,
				Name:     torrent.Name,
				State:    torrent.State,
				Progress: torrent.Progress,
				Waited:   s.clock.Since(start).String(),
			})
		}

		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			return NewErrorResult(fmt.Sprintf(
				"Timed out after %v waiting for torrent %s to reach %q: state is %q, progress %.1f%%.",
				timeout, hash, target, torrent.State, torrent.Progress*100)), nil
		}
		if err := sleepContext(ctx, s.clock, min(s.waitPolicy.interval, remaining)); err != nil {
			return nil, err
		}
	}
}

// statusMatches reports whether torrent is in the target state.
func statusMatches(torrent *qbit.Torrent, target string) bool {
	if target == statusCompleted {
		return torrent.Progress >= 1
	}
	return normalizeState(torrent.State) == normalizeState(target)
}

func normalizeState(state string) string {
	if modern, ok := legacyStates[state]; ok {
		return modern
	}
	return state
}

// sleepContext waits for d on clock unless ctx is cancelled first.
func sleepContext(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
