// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

// Package telemetry builds the OpenTelemetry meter and tracer providers
// and the metrics recorder used by the tool middleware.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/config"
)

// instrumentationName names the meter and the tracer.
const instrumentationName = "trpc.group/trpc-go/trpc-qbit-mcp"

// Providers holds the configured providers. Disabled signals use no-op
// providers so callers never need nil checks.
type Providers struct {
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider

	shutdowns []func(context.Context) error
}

// Meter returns the server meter.
func (p *Providers) Meter() metric.Meter {
	return p.MeterProvider.Meter(instrumentationName)
}

// Tracer returns the server tracer.
func (p *Providers) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(instrumentationName)
}

// Enabled reports whether any signal is exported.
func (p *Providers) Enabled() bool {
	return len(p.shutdowns) > 0
}

// Shutdown flushes and stops every exporter.
func (p *Providers) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	for _, shutdown := range p.shutdowns {
		if err := shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Setup creates providers for cfg. Stdout exporters write to stderr since
// stdout may carry the stdio transport.
func Setup(ctx context.Context, cfg config.TelemetryConfig, serviceName, version string) (*Providers, error) {
	providers := &Providers{
		MeterProvider:  metricnoop.NewMeterProvider(),
		TracerProvider: tracenoop.NewTracerProvider(),
	}
	if cfg.MetricsExporter == config.ExporterNone && cfg.TracesExporter == config.ExporterNone {
		return providers, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("resource.New: %w", err)
	}

	var conn *grpc.ClientConn
	if cfg.MetricsExporter == config.ExporterOTLP || cfg.TracesExporter == config.ExporterOTLP {
		conn, err = newConn(cfg)
		if err != nil {
			return nil, err
		}
		providers.shutdowns = append(providers.shutdowns, func(context.Context) error { return conn.Close() })
	}

	if cfg.MetricsExporter != config.ExporterNone {
		exporter, err := newMetricExporter(ctx, cfg.MetricsExporter, conn, os.Stderr)
		if err != nil {
			return nil, err
		}
		interval := cfg.MetricsInterval
		if interval <= 0 {
			interval = time.Minute
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
			sdkmetric.WithResource(res),
		)
		providers.MeterProvider = mp
		providers.shutdowns = append([]func(context.Context) error{mp.Shutdown}, providers.shutdowns...)
	}

	if cfg.TracesExporter != config.ExporterNone {
		exporter, err := newSpanExporter(ctx, cfg.TracesExporter, conn, os.Stderr)
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		providers.TracerProvider = tp
		providers.shutdowns = append([]func(context.Context) error{tp.Shutdown}, providers.shutdowns...)
	}
	return providers, nil
}

func newConn(cfg config.TelemetryConfig) (*grpc.ClientConn, error) {
	endpoint := cfg.OTLPEndpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	var opts []grpc.DialOption
	if cfg.OTLPInsecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	return conn, nil
}

func newMetricExporter(ctx context.Context, kind string, conn *grpc.ClientConn, w io.Writer) (sdkmetric.Exporter, error) {
	switch kind {
	case config.ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		return exporter, nil
	case config.ExporterOTLP:
		exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported metrics exporter: %s", kind)
	}
}

func newSpanExporter(ctx context.Context, kind string, conn *grpc.ClientConn, w io.Writer) (sdktrace.SpanExporter, error) {
	switch kind {
	case config.ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout span exporter: %w", err)
		}
		return exporter, nil
	case config.ExporterOTLP:
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create span exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported traces exporter: %s", kind)
	}
}
