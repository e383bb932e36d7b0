// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveLines feeds input to a stdio server and returns every output line.
func serveLines(t *testing.T, s *Server, input ...string) []map[string]interface{} {
	t.Helper()
	var out bytes.Buffer
	stdio := NewStdioServer(s, WithStdioServerLogger(NewNopLogger()))
	require.NoError(t, stdio.Serve(context.Background(), strings.NewReader(strings.Join(input, "\n")), &out))

	var messages []map[string]interface{}
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var message map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &message), scanner.Text())
		messages = append(messages, message)
	}
	require.NoError(t, scanner.Err())
	return messages
}

func TestStdioServer_RoundTrip(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())

	messages := serveLines(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`this is not json`,
		`{"jsonrpc":"2.0","id":"two","method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"no/such/method"}`,
	)

	require.Len(t, messages, 3)
	assert.Equal(t, float64(1), messages[0]["id"])
	result := messages[0]["result"].(map[string]interface{})
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])

	assert.Equal(t, "two", messages[1]["id"])
	assert.Equal(t, map[string]interface{}{}, messages[1]["result"])

	assert.Equal(t, float64(3), messages[2]["id"])
	errObj := messages[2]["error"].(map[string]interface{})
	assert.Equal(t, float64(ErrCodeMethodNotFound), errObj["code"])
}

func TestStdioServer_UnterminatedFinalLine(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())

	var out bytes.Buffer
	stdio := NewStdioServer(s, WithStdioServerLogger(NewNopLogger()))
	err := stdio.Serve(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":9,"method":"ping"}`), &out)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":9,"result":{}}`+"\n", out.String())
}

func TestStdioServer_ToolsListChangedFollowsResponse(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend(), WithLazyMode(true))

	messages := serveLines(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"show_all_tools"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"show_all_tools"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/list"}`,
	)

	require.Len(t, messages, 5)
	lazyTools := messages[0]["result"].(map[string]interface{})["tools"].([]interface{})
	assert.Len(t, lazyTools, 2)

	assert.Equal(t, float64(2), messages[1]["id"])
	assert.Equal(t, MethodNotificationsToolsListChanged, messages[2]["method"])
	assert.NotContains(t, messages[2], "id")

	assert.Equal(t, float64(3), messages[3]["id"])
	assert.Equal(t, messages[1]["result"], messages[3]["result"])

	fullTools := messages[4]["result"].(map[string]interface{})["tools"].([]interface{})
	assert.Greater(t, len(fullTools), 40)
}

func TestStdioServer_StopsOnContextCancel(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())
	in, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewStdioServer(s, WithStdioServerLogger(NewNopLogger())).Serve(ctx, in, io.Discard)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop")
	}
}

func TestStdioServer_WriteFailureStops(t *testing.T) {
	s, _ := newTestServer(t, newFakeBackend())

	err := NewStdioServer(s, WithStdioServerLogger(NewNopLogger())).
		Serve(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), failingWriter{})
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestReadLine_LongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	reader := bufio.NewReaderSize(strings.NewReader(long+"\nshort"), 16)

	line, err := readLine(reader)
	require.NoError(t, err)
	assert.Len(t, line, len(long))

	line, err = readLine(reader)
	require.NoError(t, err)
	assert.Equal(t, "short", string(line))

	line, err = readLine(reader)
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, line)
}
