// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

const (
	// JSONRPCVersion is the only JSON-RPC version spoken.
	JSONRPCVersion = "2.0"
	// ProtocolVersion is the MCP protocol revision announced on initialize.
	ProtocolVersion = "2024-11-05"
)

// Method names served by the router.
const (
	MethodInitialize               = "initialize"
	MethodNotificationsInitialized = "notifications/initialized"
	MethodNotificationsCancelled   = "notifications/cancelled"
	MethodPing                     = "ping"
	MethodToolsList                = "tools/list"
	MethodToolsCall                = "tools/call"
	MethodResourcesList            = "resources/list"
	MethodResourcesRead            = "resources/read"

	// MethodNotificationsToolsListChanged is pushed once after the visible
	// tool set grows.
	MethodNotificationsToolsListChanged = "notifications/tools/list_changed"
)

// JSON-RPC error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

const (
	// ContentTypeText represents text content type
	ContentTypeText = "text"
	// MimeTypeJSON is the mime type of every resource body.
	MimeTypeJSON = "application/json"
)

// JSONRPCMessage is any message exchanged with a peer.
type JSONRPCMessage interface{}

// JSONRPCRequest is an incoming request. A nil ID marks a notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the peer expects no response.
func (r *JSONRPCRequest) IsNotification() bool {
	return r.ID == nil
}

// JSONRPCResponse is a successful response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result"`
}

// JSONRPCErrorObject is the error member of an error response.
type JSONRPCErrorObject struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONRPCError is an error response.
type JSONRPCError struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      interface{}        `json:"id"`
	Error   JSONRPCErrorObject `json:"error"`
}

// JSONRPCNotification is a server-initiated message without an id.
type JSONRPCNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// newJSONRPCErrorResponse creates an error response.
func newJSONRPCErrorResponse(id interface{}, code int, message string, data interface{}) *JSONRPCError {
	return &JSONRPCError{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: JSONRPCErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// newJSONRPCResponse wraps a handler result.
func newJSONRPCResponse(id interface{}, result interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// newToolsListChangedNotification builds the one-shot tool list notification.
func newToolsListChangedNotification() *JSONRPCNotification {
	return &JSONRPCNotification{
		JSONRPC: JSONRPCVersion,
		Method:  MethodNotificationsToolsListChanged,
	}
}

// parseJSONRPCRequest decodes one request. Numeric ids are kept as
// json.Number so they are echoed back unchanged.
func parseJSONRPCRequest(data []byte) (*JSONRPCRequest, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var req JSONRPCRequest
	if err := decoder.Decode(&req); err != nil {
		return nil, err
	}
	if req.Method == "" {
		return nil, fmt.Errorf("missing method")
	}
	return &req, nil
}

// buildResponse turns a router outcome into the envelope sent to the peer.
func buildResponse(id interface{}, result JSONRPCMessage, err error) JSONRPCMessage {
	if err != nil {
		return newJSONRPCErrorResponse(id, ErrCodeInternal, err.Error(), nil)
	}
	if errResp, ok := result.(*JSONRPCError); ok {
		return errResp
	}
	return newJSONRPCResponse(id, result)
}

// Implementation describes the server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability declares tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourcesCapability declares resource support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

// ServerCapabilities is announced on initialize.
type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// InitializeResult is the result of initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Tool describes a callable tool.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema *openapi3.Schema `json:"inputSchema"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []*Tool `json:"tools"`
}

// CallToolParams are the params of tools/call.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// CallToolRequest is a decoded tools/call request.
type CallToolRequest struct {
	Params CallToolParams `json:"params"`
}

// Content is one item of a tool result.
type Content interface {
	isContent()
}

// TextContent represents text content
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextContent) isContent() {}

// NewTextContent creates a text content item.
func NewTextContent(text string) TextContent {
	return TextContent{
		Type: ContentTypeText,
		Text: text,
	}
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// NewTextResult creates a successful single-text result.
func NewTextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{NewTextContent(text)}}
}

// NewErrorResult creates a result flagged as an error-like outcome.
func NewErrorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{NewTextContent(text)}, IsError: true}
}

// Resource describes a readable resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesResult is the result of resources/list.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ReadResourceParams are the params of resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// TextResourceContents is the body of a read resource.
type TextResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// ReadResourceResult is the result of resources/read.
type ReadResourceResult struct {
	Contents []TextResourceContents `json:"contents"`
}
