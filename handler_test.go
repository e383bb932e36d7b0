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
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
)

func TestRouter_Initialize(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend(), WithInstructions("manage torrents"))

	resp := s.handleMessage(context.Background(), request(t, 1, MethodInitialize, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
	}))
	result, ok := resp.(*JSONRPCResponse)
	require.True(t, ok)
	assert.Equal(t, 1, result.ID)

	init, ok := result.Result.(*InitializeResult)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, init.ProtocolVersion)
	assert.Equal(t, "qbit-test", init.ServerInfo.Name)
	assert.Equal(t, "manage torrents", init.Instructions)
	require.NotNil(t, init.Capabilities.Tools)
	assert.True(t, init.Capabilities.Tools.ListChanged)
	require.NotNil(t, init.Capabilities.Resources)
	assert.False(t, init.Capabilities.Resources.Subscribe)

	again := s.handleMessage(context.Background(), request(t, 2, MethodInitialize, nil))
	assert.Equal(t, init, again.(*JSONRPCResponse).Result)
}

func TestRouter_Ping(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())

	resp := s.handleMessage(context.Background(), request(t, "p-1", MethodPing, nil))
	result, ok := resp.(*JSONRPCResponse)
	require.True(t, ok)
	assert.Equal(t, "p-1", result.ID)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"p-1","result":{}}`, string(data))
}

func TestRouter_Notifications(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())

	for _, method := range []string{MethodNotificationsInitialized, MethodNotificationsCancelled, "no/such/method", MethodToolsList} {
		assert.Nil(t, s.handleMessage(context.Background(), request(t, nil, method, nil)), method)
	}
}

func TestRouter_ErrorCodes(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())

	tests := []struct {
		name   string
		method string
		params interface{}
		code   int
	}{
		{name: "unknown method", method: "tools/destroy", code: ErrCodeMethodNotFound},
		{name: "unknown tool", method: MethodToolsCall, params: map[string]interface{}{"name": "nope"}, code: ErrCodeMethodNotFound},
		{name: "tool without name", method: MethodToolsCall, params: map[string]interface{}{}, code: ErrCodeInvalidParams},
		{name: "missing required argument", method: MethodToolsCall, params: map[string]interface{}{
			"name": "get_torrent_properties", "arguments": map[string]interface{}{},
		}, code: ErrCodeInvalidParams},
		{name: "unknown instance", method: MethodToolsCall, params: map[string]interface{}{
			"name": "list_torrents", "arguments": map[string]interface{}{"instance": "other"},
		}, code: ErrCodeInvalidParams},
		{name: "unknown resource", method: MethodResourcesRead, params: map[string]interface{}{"uri": "qbittorrent://peers"}, code: ErrCodeMethodNotFound},
		{name: "resource without uri", method: MethodResourcesRead, params: map[string]interface{}{}, code: ErrCodeInvalidParams},
		{name: "unimplemented backend call", method: MethodToolsCall, params: map[string]interface{}{
			"name": "get_torrent_files", "arguments": map[string]interface{}{"hash": "aaa"},
		}, code: ErrCodeInternal},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleMessage(context.Background(), request(t, i, tt.method, tt.params))
			errResp, ok := resp.(*JSONRPCError)
			require.True(t, ok, "expected error response, got %T", resp)
			assert.Equal(t, i, errResp.ID)
			assert.Equal(t, tt.code, errResp.Error.Code)
		})
	}
}

func TestErrorResponseFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrap: %w", errors.ErrToolNotFound), ErrCodeMethodNotFound},
		{fmt.Errorf("wrap: %w", errors.ErrResourceNotFound), ErrCodeMethodNotFound},
		{fmt.Errorf("wrap: %w", errors.ErrMissingParams), ErrCodeInvalidParams},
		{fmt.Errorf("wrap: %w", errors.ErrInstanceNotFound), ErrCodeInvalidParams},
		{fmt.Errorf("wrap: %w", errors.ErrTorrentNotFound), ErrCodeInternal},
		{fmt.Errorf("connection refused"), ErrCodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, errorResponseFor(1, tt.err).Error.Code, tt.err.Error())
	}
}

func TestRouter_ToolsListLazy(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend(), WithLazyMode(true))

	list := func() []string {
		resp := s.handleMessage(context.Background(), request(t, 1, MethodToolsList, nil))
		return toolNames(resp.(*JSONRPCResponse).Result.(*ListToolsResult).Tools)
	}

	assert.Equal(t, []string{"list_torrents", "show_all_tools"}, list())
	assert.False(t, s.ToolsRevealed())

	reveal := request(t, 2, MethodToolsCall, map[string]interface{}{"name": "show_all_tools"})
	first, notify := s.dispatch(context.Background(), reveal)
	assert.True(t, s.ToolsRevealed())
	assert.True(t, notify)

	second, notify := s.dispatch(context.Background(), reveal)
	assert.False(t, notify)
	assert.Equal(t, first, second)

	full := list()
	assert.Greater(t, len(full), 40)
	assert.Contains(t, full, "search_torrents")
	assert.Contains(t, full, "wait_for_torrent_status")
	assert.Contains(t, full, "list_torrents")
	assert.Contains(t, full, "show_all_tools")
}

func TestRouter_ToolsListFull(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())
	resp := s.handleMessage(context.Background(), request(t, 1, MethodToolsList, nil))
	tools := resp.(*JSONRPCResponse).Result.(*ListToolsResult).Tools

	seen := make(map[string]bool)
	for _, tool := range tools {
		assert.False(t, seen[tool.Name], "duplicate tool %s", tool.Name)
		seen[tool.Name] = true
		assert.NotEmpty(t, tool.Description, tool.Name)
		require.NotNil(t, tool.InputSchema, tool.Name)
	}

	_, notify := s.dispatch(context.Background(), request(t, 2, MethodToolsCall, map[string]interface{}{"name": "show_all_tools"}))
	assert.False(t, notify, "no transition when already full")
}

func TestRouter_ToolCallMiddlewares(t *testing.T) {
	var order []string
	trace := func(name string) MiddlewareFunc {
		return func(ctx context.Context, req *CallToolRequest, next Handler) (*CallToolResult, error) {
			order = append(order, name+":"+req.Params.Name)
			return next(ctx, req)
		}
	}
	s, _ := newTestServer(t, newFakeBackend(), WithMiddlewares(trace("outer"), trace("inner")))

	_, errResp := callTool(t, s, "list_torrents", nil)
	require.Nil(t, errResp)
	assert.Equal(t, []string{"outer:list_torrents", "inner:list_torrents"}, order)
}

func TestRouter_PanickingToolIsRecovered(t *testing.T) {
	// get_torrent_trackers is not implemented by the fake and panics.
	s, _ := newTestServer(t, newFakeBackend())

	_, errResp := callTool(t, s, "get_torrent_trackers", map[string]interface{}{"hash": "aaa"})
	require.NotNil(t, errResp)
	assert.Equal(t, ErrCodeInternal, errResp.Error.Code)
	assert.Contains(t, errResp.Error.Message, ErrCodePanic)
}

func TestServer_DispatchNotifiesOnlyTheRevealingRequest(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend(), WithLazyMode(true))
	ping := request(t, 1, MethodPing, nil)

	// A request finishing between the reveal and the revealing response
	// must not steal the notification.
	_, notify := s.dispatch(context.Background(), ping)
	assert.False(t, notify)

	ctx, marker := withRevealMarker(context.Background())
	require.True(t, s.visibility.reveal())
	markRevealed(ctx)

	_, notify = s.dispatch(context.Background(), ping)
	assert.False(t, notify)
	assert.True(t, marker.revealed.Load())
	assert.True(t, s.visibility.takeNotification(), "flag stays armed for the revealing request")
}

func TestServer_DispatchConcurrentReveals(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend(), WithLazyMode(true))

	requests := make([]*JSONRPCRequest, 20)
	for i := range requests {
		if i%2 == 0 {
			requests[i] = request(t, i, MethodToolsCall, map[string]interface{}{"name": "show_all_tools"})
		} else {
			requests[i] = request(t, i, MethodPing, nil)
		}
	}

	var notified atomic.Int32
	var wg sync.WaitGroup
	for _, req := range requests {
		wg.Add(1)
		go func(req *JSONRPCRequest) {
			defer wg.Done()
			if _, notify := s.dispatch(context.Background(), req); notify {
				notified.Add(1)
			}
		}(req)
	}
	wg.Wait()
	assert.Equal(t, int32(1), notified.Load())
}
