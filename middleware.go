// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MiddlewareError is returned by middlewares that stop a call themselves.
type MiddlewareError struct {
	Code    string
	Message string
	Cause   error
	Trace   []string
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
}

func (e *MiddlewareError) Unwrap() error {
	return e.Cause
}

// ErrCodePanic marks a recovered panic.
const ErrCodePanic = "PANIC_RECOVERED"

// NewMiddlewareError creates a middleware error carrying the caller stack.
func NewMiddlewareError(code, message string, cause error) *MiddlewareError {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	stack := make([]string, 0, n)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}

	return &MiddlewareError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Trace:   stack,
	}
}

// Handler executes a tool call at the end of the middleware chain.
type Handler func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error)

// MiddlewareFunc wraps a tool call. It may act before and after next.
type MiddlewareFunc func(ctx context.Context, req *CallToolRequest, next Handler) (*CallToolResult, error)

// Chain links middlewares around handler. The first middleware is the
// outermost: Chain(h, m1, m2) runs m1 -> m2 -> h.
func Chain(handler Handler, middlewares ...MiddlewareFunc) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = wrap(middlewares[i], handler)
	}
	return handler
}

func wrap(m MiddlewareFunc, next Handler) Handler {
	return func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		return m(ctx, req, next)
	}
}

// RecoveryMiddleware turns a panicking tool handler into an error.
func RecoveryMiddleware(logger Logger) MiddlewareFunc {
	return func(ctx context.Context, req *CallToolRequest, next Handler) (result *CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Panic in tool %s: %v", req.Params.Name, r)
				result = nil
				err = NewMiddlewareError(ErrCodePanic, "tool "+req.Params.Name+" panicked", fmt.Errorf("panic: %v", r))
			}
		}()
		return next(ctx, req)
	}
}

// LoggingMiddleware logs every tool call with its duration.
func LoggingMiddleware(logger Logger) MiddlewareFunc {
	return func(ctx context.Context, req *CallToolRequest, next Handler) (*CallToolResult, error) {
		start := time.Now()
		logger.Debugf("Calling tool %s", req.Params.Name)

		result, err := next(ctx, req)

		duration := time.Since(start)
		switch {
		case err != nil:
			logger.Warnf("Tool %s failed after %v: %v", req.Params.Name, duration, err)
		case result != nil && result.IsError:
			logger.Infof("Tool %s returned an error result after %v", req.Params.Name, duration)
		default:
			logger.Debugf("Tool %s completed in %v", req.Params.Name, duration)
		}
		return result, err
	}
}

// MetricsRecorder receives tool and session measurements.
type MetricsRecorder interface {
	// RecordToolCall records one finished tool call. failed covers both
	// protocol errors and error-flagged results.
	RecordToolCall(ctx context.Context, tool string, duration time.Duration, failed bool)
	// RecordSessionDelta adjusts the number of open push-channel sessions.
	RecordSessionDelta(ctx context.Context, delta int64)
}

// MetricsMiddleware reports every tool call to recorder.
func MetricsMiddleware(recorder MetricsRecorder) MiddlewareFunc {
	return func(ctx context.Context, req *CallToolRequest, next Handler) (*CallToolResult, error) {
		start := time.Now()
		result, err := next(ctx, req)
		failed := err != nil || (result != nil && result.IsError)
		recorder.RecordToolCall(ctx, req.Params.Name, time.Since(start), failed)
		return result, err
	}
}

// TracingMiddleware wraps every tool call in a span.
func TracingMiddleware(tracer trace.Tracer) MiddlewareFunc {
	return func(ctx context.Context, req *CallToolRequest, next Handler) (*CallToolResult, error) {
		ctx, span := tracer.Start(ctx, MethodToolsCall+" "+req.Params.Name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool.name", req.Params.Name)))
		defer span.End()

		result, err := next(ctx, req)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			span.SetAttributes(attribute.Bool("mcp.tool.is_error", true))
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		return result, err
	}
}
