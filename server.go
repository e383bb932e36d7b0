// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Server is a qBittorrent MCP server. It owns the tool registry, the
// resources, the visibility state and the router; transports
// (StdioServer, SSEServer) are thin adapters around it.
type Server struct {
	serverInfo   Implementation
	instructions string
	lazyMode     bool
	logger       Logger
	clock        clockwork.Clock
	middlewares  []MiddlewareFunc

	searchPolicy searchPolicy
	waitPolicy   waitPolicy

	instances       *InstanceSet
	visibility      *visibilityState
	toolManager     *toolManager
	resourceManager *resourceManager
	mcpHandler      *mcpHandler
}

// searchPolicy is the fixed polling budget of search_torrents.
type searchPolicy struct {
	interval time.Duration
	attempts int
}

// waitPolicy is the polling cadence of wait_for_torrent_status.
type waitPolicy struct {
	interval time.Duration
}

// ServerOption server option function.
type ServerOption func(*Server)

// WithServerLogger sets the logger for the server and all subcomponents.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLazyMode starts the server with only the minimal tool set visible
// until show_all_tools is called.
func WithLazyMode(lazy bool) ServerOption {
	return func(s *Server) {
		s.lazyMode = lazy
	}
}

// WithInstructions sets the instructions returned by initialize.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithClock replaces the clock used by the polling tools.
func WithClock(clock clockwork.Clock) ServerOption {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithMiddlewares appends tool call middlewares. They run inside the
// built-in panic recovery, in the given order.
func WithMiddlewares(middlewares ...MiddlewareFunc) ServerOption {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, middlewares...)
	}
}

// withSearchPolicy overrides the search polling budget.
func withSearchPolicy(interval time.Duration, attempts int) ServerOption {
	return func(s *Server) {
		s.searchPolicy = searchPolicy{interval: interval, attempts: attempts}
	}
}

// NewServer creates a server exposing the backends in instances.
func NewServer(name, version string, instances *InstanceSet, opts ...ServerOption) *Server {
	if instances == nil {
		instances = NewInstanceSet()
	}

	s := &Server{
		serverInfo: Implementation{
			Name:    name,
			Version: version,
		},
		logger:    GetDefaultLogger(),
		clock:     clockwork.NewRealClock(),
		instances: instances,
		searchPolicy: searchPolicy{
			interval: defaultSearchPollInterval,
			attempts: defaultSearchPollAttempts,
		},
		waitPolicy: waitPolicy{
			interval: defaultWaitPollInterval,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.serverInfo.Name == "" {
		s.serverInfo.Name = defaultServerName
	}
	if s.serverInfo.Version == "" {
		s.serverInfo.Version = defaultServerVersion
	}

	s.visibility = newVisibilityState(s.lazyMode)
	s.toolManager = newToolManager(s.visibility)
	s.resourceManager = newResourceManager(s.instances)
	s.registerTools()

	middlewares := append([]MiddlewareFunc{RecoveryMiddleware(s.logger)}, s.middlewares...)
	s.mcpHandler = newMCPHandler(
		withServerInfo(s.serverInfo, s.instructions),
		withToolManager(s.toolManager),
		withResourceManager(s.resourceManager),
		withMiddlewares(middlewares),
		withHandlerLogger(s.logger),
	)
	return s
}

// registerTools fills the registry with the whole tool catalog.
func (s *Server) registerTools() {
	s.registerTorrentTools()
	s.registerSearchTools()
	s.registerTransferTools()
	s.registerRSSTools()
	s.registerCategoryTools()
	s.registerAppTools()
}

// GetServerInfo returns the server identity.
func (s *Server) GetServerInfo() Implementation {
	return s.serverInfo
}

// Logger returns the server logger.
func (s *Server) Logger() Logger {
	return s.logger
}

// Instances returns the configured backend instances.
func (s *Server) Instances() *InstanceSet {
	return s.instances
}

// ToolsRevealed reports whether every tool is currently visible.
func (s *Server) ToolsRevealed() bool {
	return s.visibility.current() == visibilityFull
}

// handleMessage runs one decoded request through the router. It returns
// nil for notifications.
func (s *Server) handleMessage(ctx context.Context, req *JSONRPCRequest) JSONRPCMessage {
	if req.IsNotification() {
		s.mcpHandler.handleNotification(ctx, req)
		return nil
	}
	result, err := s.mcpHandler.handleRequest(ctx, req)
	if err != nil {
		s.logger.Errorf("Error handling request %s: %v", req.Method, err)
	}
	return buildResponse(req.ID, result, err)
}

// dispatch runs req like handleMessage and reports whether the caller owes
// its peers tools/list_changed. Only the request that performed the reveal
// consumes the one-shot flag, so the notification always follows that
// request's own response.
func (s *Server) dispatch(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, bool) {
	ctx, marker := withRevealMarker(ctx)
	response := s.handleMessage(ctx, req)
	return response, marker.revealed.Load() && s.visibility.takeNotification()
}
