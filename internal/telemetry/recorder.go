// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder reports tool calls and push-channel sessions with OpenTelemetry.
// It reports:
//   - mcp_tool_calls_total (counter): calls by tool and outcome
//   - mcp_tool_call_duration_ms (histogram): call latency by tool
//   - mcp_sse_sessions (updowncounter): open push-channel sessions
type Recorder struct {
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
	sessions metric.Int64UpDownCounter
}

// NewRecorder creates the instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	calls, err := meter.Int64Counter("mcp_tool_calls_total",
		metric.WithDescription("Total number of MCP tool calls"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("mcp_tool_call_duration_ms",
		metric.WithDescription("MCP tool call latency in ms"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64UpDownCounter("mcp_sse_sessions",
		metric.WithDescription("Number of open SSE sessions"))
	if err != nil {
		return nil, err
	}
	return &Recorder{calls: calls, latency: latency, sessions: sessions}, nil
}

// RecordToolCall records one finished tool call.
func (r *Recorder) RecordToolCall(ctx context.Context, tool string, duration time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	r.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	))
	r.latency.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		attribute.String("tool", tool),
	))
}

// RecordSessionDelta adjusts the open session count.
func (r *Recorder) RecordSessionDelta(ctx context.Context, delta int64) {
	r.sessions.Add(ctx, delta)
}
