// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

// Package retry implements the retry policy used by the backend client.
package retry

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Validation range constants for retry configuration parameters.
const (
	// MaxRetries validation range
	MinMaxRetries = 0
	MaxMaxRetries = 10

	// InitialBackoff validation range
	MinInitialBackoff = time.Millisecond
	MaxInitialBackoff = 30 * time.Second

	// BackoffFactor validation range
	MinBackoffFactor = 1.0
	MaxBackoffFactor = 10.0

	// MaxBackoff validation range
	MaxMaxBackoff = 5 * time.Minute
)

// retryableStatusCodes contains HTTP status codes that should be retried.
// 409 is left out: qBittorrent answers it for requests that would fail the
// same way again, such as an unknown category.
var retryableStatusCodes = []string{
	strconv.Itoa(http.StatusRequestTimeout),
	strconv.Itoa(http.StatusTooManyRequests),
	strconv.Itoa(http.StatusInternalServerError),
	strconv.Itoa(http.StatusBadGateway),
	strconv.Itoa(http.StatusServiceUnavailable),
	strconv.Itoa(http.StatusGatewayTimeout),
}

// Config defines configuration for retry behavior.
type Config struct {
	// MaxRetries specifies the maximum number of retry attempts for requests.
	MaxRetries int `yaml:"max_retries"`
	// InitialBackoff specifies the initial backoff duration before the first retry.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// BackoffFactor specifies the factor to multiply the backoff duration for each retry.
	// For example, with factor 2.0: 100ms -> 200ms -> 400ms -> 800ms
	BackoffFactor float64 `yaml:"backoff_factor"`
	// MaxBackoff specifies the maximum backoff duration to cap exponential growth.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// DefaultConfig is conservative: two retries starting at 500ms.
var DefaultConfig = Config{
	MaxRetries:     2,
	InitialBackoff: 500 * time.Millisecond,
	BackoffFactor:  2.0,
	MaxBackoff:     8 * time.Second,
}

// Validate validates and clamps retry configuration parameters to sensible ranges.
func (c Config) Validate() Config {
	validated := c

	// Clamp MaxRetries to reasonable range
	if validated.MaxRetries < MinMaxRetries {
		validated.MaxRetries = MinMaxRetries
	} else if validated.MaxRetries > MaxMaxRetries {
		validated.MaxRetries = MaxMaxRetries
	}

	// Clamp InitialBackoff to reasonable range
	if validated.InitialBackoff < MinInitialBackoff {
		validated.InitialBackoff = MinInitialBackoff
	} else if validated.InitialBackoff > MaxInitialBackoff {
		validated.InitialBackoff = MaxInitialBackoff
	}

	// Clamp BackoffFactor to reasonable range
	if validated.BackoffFactor < MinBackoffFactor {
		validated.BackoffFactor = MinBackoffFactor
	} else if validated.BackoffFactor > MaxBackoffFactor {
		validated.BackoffFactor = MaxBackoffFactor
	}

	// Clamp MaxBackoff to reasonable range, ensure it's >= InitialBackoff
	if validated.MaxBackoff < validated.InitialBackoff {
		validated.MaxBackoff = validated.InitialBackoff
	} else if validated.MaxBackoff > MaxMaxBackoff {
		validated.MaxBackoff = MaxMaxBackoff
	}

	return validated
}

// IsRetryableError determines if an error is retryable based on its characteristics.
// This function uses precise pattern matching to avoid false positives.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection timeout") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "dial timeout") ||
		errStr == "eof" ||
		strings.HasSuffix(errStr, ": eof") {
		return true
	}

	return isHTTPStatusRetryable(errStr)
}

// isHTTPStatusRetryable checks if an error contains a retryable HTTP status code.
// Uses precise patterns to avoid false positives (e.g., "port 5001" won't match "501").
func isHTTPStatusRetryable(errStr string) bool {
	for _, code := range retryableStatusCodes {
		if strings.Contains(errStr, "http "+code) ||
			strings.Contains(errStr, "status "+code) ||
			strings.Contains(errStr, "status: "+code) {
			return true
		}
	}
	return false
}

// Execute runs operation, retrying retryable failures with exponential backoff.
// A nil config or zero MaxRetries runs the operation exactly once.
func Execute(ctx context.Context, config *Config, operation func() error) error {
	if config == nil || config.MaxRetries == 0 {
		return operation()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = config.InitialBackoff
	policy.Multiplier = config.BackoffFactor
	policy.MaxInterval = config.MaxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := operation(); err != nil {
			if !IsRetryableError(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(config.MaxRetries+1)))
	return err
}
