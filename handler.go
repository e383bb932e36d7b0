// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
)

const (
	// defaultServerName is the default name for the server
	defaultServerName = "qbittorrent-mcp"
	// defaultServerVersion is the default version for the server
	defaultServerVersion = "0.1.0"
)

// mcpHandler is the request router. It never touches a transport: each
// transport decodes a request, calls handleRequest or handleNotification
// and writes whatever comes back.
type mcpHandler struct {
	serverInfo   Implementation
	instructions string

	// Tool manager
	toolManager *toolManager

	// Resource manager
	resourceManager *resourceManager

	// Middleware chain applied to tool calls
	middlewares []MiddlewareFunc

	logger Logger
}

// newMCPHandler creates an MCP protocol handler
func newMCPHandler(options ...func(*mcpHandler)) *mcpHandler {
	h := &mcpHandler{
		serverInfo: Implementation{
			Name:    defaultServerName,
			Version: defaultServerVersion,
		},
		logger: GetDefaultLogger(),
	}

	// Apply options
	for _, option := range options {
		option(h)
	}
	return h
}

// withServerInfo sets the identity returned by initialize
func withServerInfo(info Implementation, instructions string) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.serverInfo = info
		h.instructions = instructions
	}
}

// withToolManager sets the tool manager
func withToolManager(manager *toolManager) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.toolManager = manager
	}
}

// withResourceManager sets the resource manager
func withResourceManager(manager *resourceManager) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.resourceManager = manager
	}
}

// withMiddlewares sets the middleware chain for the handler
func withMiddlewares(middlewares []MiddlewareFunc) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.middlewares = middlewares
	}
}

// withHandlerLogger sets the logger
func withHandlerLogger(logger Logger) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.logger = logger
	}
}

// requestHandlerFunc handles one method.
type requestHandlerFunc func(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error)

// requestDispatchTable maps method names to handlers.
func (h *mcpHandler) requestDispatchTable() map[string]requestHandlerFunc {
	return map[string]requestHandlerFunc{
		MethodInitialize:    h.handleInitialize,
		MethodPing:          h.handlePing,
		MethodToolsList:     h.handleToolsList,
		MethodToolsCall:     h.handleToolsCall,
		MethodResourcesList: h.handleResourcesList,
		MethodResourcesRead: h.handleResourcesRead,
	}
}

// handleRequest routes a request. The returned message is either a result
// or a *JSONRPCError; a returned error is an unexpected failure the
// transport reports as InternalError.
func (h *mcpHandler) handleRequest(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	if handler, ok := h.requestDispatchTable()[req.Method]; ok {
		return handler(ctx, req)
	}
	return newJSONRPCErrorResponse(req.ID, ErrCodeMethodNotFound, errors.ErrMethodNotFound.Error(), req.Method), nil
}

// handleNotification processes a message without an id. Nothing is ever
// sent back; failures only reach the log.
func (h *mcpHandler) handleNotification(ctx context.Context, req *JSONRPCRequest) {
	switch req.Method {
	case MethodNotificationsInitialized:
		h.logger.Infof("Client initialized (%s)", h.serverInfo.Name)
	case MethodNotificationsCancelled:
		h.logger.Debugf("Client cancelled a request: %s", string(req.Params))
	default:
		result, err := h.handleRequest(ctx, req)
		if err != nil {
			h.logger.Errorf("Notification %s failed: %v", req.Method, err)
			return
		}
		if errResp, ok := result.(*JSONRPCError); ok {
			h.logger.Errorf("Notification %s failed: %s", req.Method, errResp.Error.Message)
		}
	}
}

func (h *mcpHandler) handleInitialize(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{ListChanged: true},
			Resources: &ResourcesCapability{Subscribe: false, ListChanged: false},
		},
		ServerInfo:   h.serverInfo,
		Instructions: h.instructions,
	}, nil
}

func (h *mcpHandler) handlePing(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	return map[string]interface{}{}, nil
}

func (h *mcpHandler) handleToolsList(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	return h.toolManager.handleListTools(ctx, req)
}

func (h *mcpHandler) handleToolsCall(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	callReq, err := parseCallToolRequest(req.Params)
	if err != nil {
		return errorResponseFor(req.ID, err), nil
	}

	handler := Chain(h.toolManager.callTool, h.middlewares...)
	result, err := handler(ctx, callReq)
	if err != nil {
		return errorResponseFor(req.ID, err), nil
	}
	if result == nil {
		result = &CallToolResult{Content: []Content{}}
	}
	return result, nil
}

func (h *mcpHandler) handleResourcesList(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	return h.resourceManager.handleListResources(ctx, req)
}

func (h *mcpHandler) handleResourcesRead(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	return h.resourceManager.handleReadResource(ctx, req)
}

// errorResponseFor maps a handler error onto the fixed code taxonomy.
func errorResponseFor(id interface{}, err error) *JSONRPCError {
	switch {
	case errors.IsNotFoundError(err):
		return newJSONRPCErrorResponse(id, ErrCodeMethodNotFound, err.Error(), nil)
	case errors.IsParamsError(err):
		return newJSONRPCErrorResponse(id, ErrCodeInvalidParams, err.Error(), nil)
	default:
		return newJSONRPCErrorResponse(id, ErrCodeInternal, err.Error(), nil)
	}
}
