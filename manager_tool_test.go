// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
)

func echoHandler(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
	data, _ := json.Marshal(req.Params.Arguments)
	return NewTextResult(string(data)), nil
}

func toolNames(tools []*Tool) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestNewTool_Schema(t *testing.T) {
	tool := NewTool("add",
		WithDescription("Add things"),
		WithString("name", Required(), Description("Name")),
		WithInteger("count", Min(1), Max(5), Default(2)),
		WithStringArray("tags", MinItems(1), Enum("a", "b")),
		WithBoolean("dry_run"),
	)

	assert.Equal(t, "add", tool.Name)
	assert.Equal(t, "Add things", tool.Description)
	assert.Equal(t, []string{"name"}, tool.InputSchema.Required)
	require.Contains(t, tool.InputSchema.Properties, "count")
	assert.Equal(t, float64(5), *tool.InputSchema.Properties["count"].Value.Max)
	assert.Equal(t, []interface{}{"a", "b"}, tool.InputSchema.Properties["tags"].Value.Items.Value.Enum)

	data, err := json.Marshal(tool)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"inputSchema"`)
	assert.Contains(t, string(data), `"required":["name"]`)
}

func TestToolManager_ListFollowsVisibility(t *testing.T) {
	visibility := newVisibilityState(true)
	m := newToolManager(visibility)
	m.registerTool(NewTool("list"), echoHandler, visibleWhenRestricted())
	m.registerTool(NewTool("hidden"), echoHandler)
	m.registerTool(NewTool("reveal"), echoHandler, visibleWhenRestricted())

	assert.Equal(t, []string{"list", "reveal"}, toolNames(m.listTools()))

	visibility.reveal()
	assert.Equal(t, []string{"list", "hidden", "reveal"}, toolNames(m.listTools()))
}

func TestToolManager_HiddenToolsStayCallable(t *testing.T) {
	m := newToolManager(newVisibilityState(true))
	m.registerTool(NewTool("hidden"), echoHandler)

	result, err := m.callTool(context.Background(), &CallToolRequest{Params: CallToolParams{Name: "hidden"}})
	require.NoError(t, err)
	assert.Equal(t, "{}", resultText(t, result))
}

func TestToolManager_NilArgumentsReachHandlerAsEmptyMap(t *testing.T) {
	m := newToolManager(newVisibilityState(false))
	var got map[string]interface{}
	m.registerTool(NewTool("inspect", WithBoolean("verbose")), func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		got = req.Params.Arguments
		return NewTextResult("ok"), nil
	})

	_, err := m.callTool(context.Background(), &CallToolRequest{Params: CallToolParams{Name: "inspect"}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestToolManager_CallTool(t *testing.T) {
	m := newToolManager(newVisibilityState(false))
	m.registerTool(NewTool("echo",
		WithString("text", Required()),
		WithInteger("times", Min(1)),
	), echoHandler)

	tests := []struct {
		name    string
		tool    string
		args    map[string]interface{}
		wantErr error
	}{
		{name: "valid", tool: "echo", args: map[string]interface{}{"text": "hi", "times": float64(2)}},
		{name: "unknown tool", tool: "nope", wantErr: errors.ErrToolNotFound},
		{name: "missing required", tool: "echo", args: map[string]interface{}{}, wantErr: errors.ErrInvalidParams},
		{name: "wrong type", tool: "echo", args: map[string]interface{}{"text": 5.0}, wantErr: errors.ErrInvalidParams},
		{name: "below minimum", tool: "echo", args: map[string]interface{}{"text": "x", "times": float64(0)}, wantErr: errors.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.callTool(context.Background(), &CallToolRequest{Params: CallToolParams{Name: tt.tool, Arguments: tt.args}})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseCallToolRequest(t *testing.T) {
	tests := []struct {
		name     string
		params   string
		wantArgs map[string]interface{}
		wantErr  error
	}{
		{name: "no arguments", params: `{"name":"t"}`, wantArgs: map[string]interface{}{}},
		{name: "null arguments", params: `{"name":"t","arguments":null}`, wantArgs: map[string]interface{}{}},
		{name: "object arguments", params: `{"name":"t","arguments":{"a":1}}`, wantArgs: map[string]interface{}{"a": float64(1)}},
		{name: "array arguments", params: `{"name":"t","arguments":[1]}`, wantErr: errors.ErrInvalidParams},
		{name: "missing name", params: `{"arguments":{}}`, wantErr: errors.ErrMissingParams},
		{name: "not an object", params: `"t"`, wantErr: errors.ErrInvalidParams},
		{name: "empty", params: ``, wantErr: errors.ErrMissingParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseCallToolRequest(json.RawMessage(tt.params))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "t", req.Params.Name)
			assert.Equal(t, tt.wantArgs, req.Params.Arguments)
		})
	}
}
