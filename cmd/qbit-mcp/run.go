// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	mcp "trpc.group/trpc-go/trpc-qbit-mcp"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/config"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/telemetry"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := mcp.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.Server.Name, version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Telemetry shutdown: %v", err)
		}
	}()
	recorder, err := telemetry.NewRecorder(providers.Meter())
	if err != nil {
		return fmt.Errorf("create metrics recorder: %w", err)
	}

	instances, err := buildInstances(cfg)
	if err != nil {
		return err
	}

	server := mcp.NewServer(cfg.Server.Name, version, instances,
		mcp.WithServerLogger(logger),
		mcp.WithLazyMode(cfg.Server.LazyMode),
		mcp.WithMiddlewares(
			mcp.TracingMiddleware(providers.Tracer()),
			mcp.MetricsMiddleware(recorder),
			mcp.LoggingMiddleware(logger),
		),
	)
	logger.Infof("Serving %d qBittorrent instance(s) over %s", instances.Len(), cfg.Server.Transport)

	if cfg.Server.Transport == config.TransportSSE {
		return serveSSE(ctx, cfg, server, recorder, logger)
	}
	if err := mcp.NewStdioServer(server).StartWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("transport") {
		cfg.Server.Transport = cmd.String("transport")
	}
	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
	}
	if cmd.IsSet("lazy") {
		cfg.Server.LazyMode = cmd.Bool("lazy")
	}
	if cmd.IsSet("token") {
		cfg.Server.AuthToken = cmd.String("token")
	}
	if cmd.IsSet("url") {
		cfg.Instances = []config.InstanceConfig{{
			Name:     "default",
			URL:      cmd.String("url"),
			Username: cmd.String("username"),
			Password: cmd.String("password"),
		}}
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildInstances(cfg *config.Config) (*mcp.InstanceSet, error) {
	instances := mcp.NewInstanceSet()
	for _, inst := range cfg.Instances {
		retryCfg := cfg.Retry
		client, err := qbit.New(qbit.Config{
			URL:      inst.URL,
			Username: inst.Username,
			Password: inst.Password,
			Timeout:  inst.Timeout,
			Retry:    &retryCfg,
		})
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", inst.Name, err)
		}
		if err := instances.Add(inst.Name, client); err != nil {
			return nil, err
		}
	}
	return instances, nil
}

// serveSSE serves the push-channel transport next to a health check until
// ctx is cancelled.
func serveSSE(ctx context.Context, cfg *config.Config, server *mcp.Server, recorder mcp.MetricsRecorder, logger mcp.Logger) error {
	sse := mcp.NewSSEServer(server,
		mcp.WithSSEServerLogger(logger),
		mcp.WithBasePath(cfg.Server.BasePath),
		mcp.WithSSEEndpoint(cfg.Server.SSEEndpoint),
		mcp.WithMessageEndpoint(cfg.Server.MessageEndpoint),
		mcp.WithKeepAliveInterval(cfg.Server.KeepAliveInterval),
		mcp.WithAuthToken(cfg.Server.AuthToken),
		mcp.WithSSEMetricsRecorder(recorder),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         "ok",
			"instances":      server.Instances().Names(),
			"sessions":       sse.SessionCount(),
			"tools_revealed": server.ToolsRevealed(),
		})
	})
	r.Mount("/", sse)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("SSE transport listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("SSE shutdown: %v", err)
		}
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
