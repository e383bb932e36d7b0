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
	"math"
	"strings"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
)

// instanceArgument is accepted by every tool.
const instanceArgument = "instance"

// withInstance adds the optional backend instance selector.
func withInstance() ToolOption {
	return WithString(instanceArgument,
		Description("Name of the qBittorrent instance to use. Defaults to the first configured instance."))
}

// withHashes adds the required torrent hash list.
func withHashes(description string) ToolOption {
	return WithStringArray("hashes", Required(), MinItems(1), Description(description))
}

// backend resolves the instance named by the call arguments.
func (s *Server) backend(req *CallToolRequest) (Backend, error) {
	return s.instances.Get(stringArg(req.Params.Arguments, instanceArgument))
}

// toolFunc is the shape of a tool body once its backend is resolved.
type toolFunc func(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error)

// withBackend adapts a toolFunc into a registry handler.
func (s *Server) withBackend(fn toolFunc) toolHandler {
	return func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		backend, err := s.backend(req)
		if err != nil {
			return nil, err
		}
		return fn(ctx, backend, req.Params.Arguments)
	}
}

// jsonResult renders v as indented JSON text.
func jsonResult(v interface{}) (*CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return NewTextResult(string(data)), nil
}

// stringArg returns a string argument or "".
func stringArg(args map[string]interface{}, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

// boolArg returns a boolean argument or def.
func boolArg(args map[string]interface{}, key string, def bool) bool {
	if value, ok := args[key].(bool); ok {
		return value
	}
	return def
}

// intArg returns an integer argument or def.
func intArg(args map[string]interface{}, key string, def int) int {
	switch value := args[key].(type) {
	case float64:
		return int(value)
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// optionalInt64Arg returns a pointer to an integer argument, nil if absent.
func optionalInt64Arg(args map[string]interface{}, key string) *int64 {
	value, ok := args[key].(float64)
	if !ok {
		return nil
	}
	n := int64(math.Round(value))
	return &n
}

// stringsArg returns a string list argument with blank items dropped.
func stringsArg(args map[string]interface{}, key string) []string {
	value, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(value))
	for _, item := range value {
		if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
			out = append(out, strings.TrimSpace(str))
		}
	}
	return out
}

// requiredStrings returns a non-empty string list argument.
func requiredStrings(args map[string]interface{}, key string) ([]string, error) {
	values := stringsArg(args, key)
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrMissingParams, key)
	}
	return values, nil
}

// requiredString returns a non-empty string argument.
func requiredString(args map[string]interface{}, key string) (string, error) {
	value := stringArg(args, key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", errors.ErrMissingParams, key)
	}
	return value, nil
}

// objectArg returns an object argument.
func objectArg(args map[string]interface{}, key string) (map[string]interface{}, error) {
	value, ok := args[key].(map[string]interface{})
	if !ok || len(value) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrMissingParams, key)
	}
	return value, nil
}

// clampInt bounds v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
