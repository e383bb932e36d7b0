// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), expected: true},
		{name: "EOF error", err: errors.New("EOF"), expected: true},
		{name: "wrapped EOF", err: errors.New("read body: EOF"), expected: true},
		{name: "status 503", err: errors.New("qbittorrent /api/v2/torrents/info: status 503: busy"), expected: true},
		{name: "status 409", err: errors.New("status 409 Conflict"), expected: false},
		{name: "status 404 (non-retryable)", err: errors.New("status 404 Not Found"), expected: false},
		{name: "port number is not a status", err: errors.New("listen on port 5001 failed"), expected: false},
		{name: "context canceled", err: context.Canceled, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryableError(tt.err))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	validated := Config{
		MaxRetries:     50,
		InitialBackoff: 0,
		BackoffFactor:  0.5,
		MaxBackoff:     time.Hour,
	}.Validate()

	assert.Equal(t, MaxMaxRetries, validated.MaxRetries)
	assert.Equal(t, MinInitialBackoff, validated.InitialBackoff)
	assert.Equal(t, MinBackoffFactor, validated.BackoffFactor)
	assert.Equal(t, MaxMaxBackoff, validated.MaxBackoff)

	validated = Config{MaxRetries: -1, InitialBackoff: time.Second, BackoffFactor: 2, MaxBackoff: time.Millisecond}.Validate()
	assert.Equal(t, 0, validated.MaxRetries)
	assert.Equal(t, time.Second, validated.MaxBackoff)
}

func TestExecute(t *testing.T) {
	fast := &Config{MaxRetries: 3, InitialBackoff: time.Millisecond, BackoffFactor: 1, MaxBackoff: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := Execute(context.Background(), fast, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("connection reset by peer")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		attempts := 0
		permanent := errors.New("status 400 bad request")
		err := Execute(context.Background(), fast, func() error {
			attempts++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := Execute(context.Background(), fast, func() error {
			attempts++
			return errors.New("EOF")
		})
		assert.Error(t, err)
		assert.Equal(t, 4, attempts)
	})

	t.Run("nil config runs once", func(t *testing.T) {
		attempts := 0
		err := Execute(context.Background(), nil, func() error {
			attempts++
			return errors.New("EOF")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})
}
