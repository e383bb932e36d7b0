// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
)

// toolHandler executes one tool call.
type toolHandler func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error)

// registeredTool pairs a tool definition with its handler.
type registeredTool struct {
	tool    *Tool
	handler toolHandler
	// lazy tools stay visible while the server is restricted.
	lazy bool
}

// registerToolOption configures a registered tool.
type registerToolOption func(*registeredTool)

// visibleWhenRestricted keeps the tool in tools/list while visibility is
// restricted.
func visibleWhenRestricted() registerToolOption {
	return func(t *registeredTool) {
		t.lazy = true
	}
}

// toolManager is the tool registry: a lookup table from tool name to
// handler, listed in registration order and filtered by visibility.
type toolManager struct {
	mu         sync.RWMutex
	tools      map[string]*registeredTool
	toolsOrder []string
	visibility *visibilityState
}

// newToolManager creates a tool manager bound to a visibility state.
func newToolManager(visibility *visibilityState) *toolManager {
	return &toolManager{
		tools:      make(map[string]*registeredTool),
		visibility: visibility,
	}
}

// registerTool adds or replaces a tool.
func (m *toolManager) registerTool(tool *Tool, handler toolHandler, opts ...registerToolOption) {
	if tool == nil || tool.Name == "" || handler == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	registered := &registeredTool{tool: tool, handler: handler}
	for _, opt := range opts {
		opt(registered)
	}
	if _, exists := m.tools[tool.Name]; !exists {
		m.toolsOrder = append(m.toolsOrder, tool.Name)
	}
	m.tools[tool.Name] = registered
}

// getTool looks a tool up regardless of visibility.
func (m *toolManager) getTool(name string) (*registeredTool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tool, ok := m.tools[name]
	return tool, ok
}

// listTools returns the tools visible at the instant of the call.
func (m *toolManager) listTools() []*Tool {
	full := m.visibility.current() == visibilityFull

	m.mu.RLock()
	defer m.mu.RUnlock()

	tools := make([]*Tool, 0, len(m.toolsOrder))
	for _, name := range m.toolsOrder {
		registered := m.tools[name]
		if full || registered.lazy {
			tools = append(tools, registered.tool)
		}
	}
	return tools
}

// handleListTools handles tools/list.
func (m *toolManager) handleListTools(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	return &ListToolsResult{Tools: m.listTools()}, nil
}

// parseCallToolRequest decodes tools/call params.
func parseCallToolRequest(params json.RawMessage) (*CallToolRequest, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: params", errors.ErrMissingParams)
	}

	var raw struct {
		Name      *string         `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidParams, err)
	}
	if raw.Name == nil || *raw.Name == "" {
		return nil, fmt.Errorf("%w: name", errors.ErrMissingParams)
	}

	req := &CallToolRequest{Params: CallToolParams{Name: *raw.Name}}
	if len(raw.Arguments) == 0 || string(raw.Arguments) == "null" {
		req.Params.Arguments = map[string]interface{}{}
		return req, nil
	}
	if err := json.Unmarshal(raw.Arguments, &req.Params.Arguments); err != nil {
		return nil, fmt.Errorf("%w: arguments must be an object", errors.ErrInvalidParams)
	}
	return req, nil
}

// callTool validates the arguments against the tool schema and runs it.
// Hidden tools remain callable; visibility only shapes tools/list.
func (m *toolManager) callTool(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
	registered, ok := m.getTool(req.Params.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrToolNotFound, req.Params.Name)
	}
	if req.Params.Arguments == nil {
		req.Params.Arguments = map[string]interface{}{}
	}
	if err := validateArguments(registered.tool.InputSchema, req.Params.Arguments); err != nil {
		return nil, err
	}
	return registered.handler(ctx, req)
}

// validateArguments checks arguments against an input schema.
func validateArguments(schema *openapi3.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if err := schema.VisitJSON(args); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidParams, err)
	}
	return nil
}
