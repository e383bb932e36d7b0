// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

func (s *Server) registerTransferTools() {
	s.toolManager.registerTool(NewTool("get_transfer_info",
		WithDescription("Get global transfer statistics, speed limits and the connection status."),
		withInstance(),
	), s.withBackend(getTransferInfo))

	s.toolManager.registerTool(NewTool("set_speed_limits",
		WithDescription("Set global speed limits in bytes/s. 0 removes a limit."),
		WithInteger("download_limit", Description("Download limit in bytes/s"), Min(0)),
		WithInteger("upload_limit", Description("Upload limit in bytes/s"), Min(0)),
		withInstance(),
	), s.withBackend(setSpeedLimits))

	s.toolManager.registerTool(NewTool("toggle_alternative_speed_limits",
		WithDescription("Switch the alternative speed limits on or off."),
		withInstance(),
	), s.withBackend(toggleAlternativeSpeedLimits))
}

// transferStatus is the get_transfer_info result.
type transferStatus struct {
	*qbit.TransferInfo
	AlternativeSpeedLimits bool `json:"alternative_speed_limits"`
}

func getTransferInfo(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	info, err := backend.TransferInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get transfer info: %w", err)
	}
	alternative, err := backend.AlternativeSpeedLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("get speed limits mode: %w", err)
	}
	return jsonResult(transferStatus{TransferInfo: info, AlternativeSpeedLimits: alternative})
}

func setSpeedLimits(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	download := optionalInt64Arg(args, "download_limit")
	upload := optionalInt64Arg(args, "upload_limit")
	if download == nil && upload == nil {
		return nil, fmt.Errorf("%w: download_limit or upload_limit", errors.ErrMissingParams)
	}
	if err := backend.SetGlobalLimits(ctx, download, upload); err != nil {
		return nil, fmt.Errorf("set speed limits: %w", err)
	}
	return NewTextResult("Global speed limits updated."), nil
}

func toggleAlternativeSpeedLimits(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	if err := backend.ToggleAlternativeSpeedLimits(ctx); err != nil {
		return nil, fmt.Errorf("toggle alternative speed limits: %w", err)
	}
	enabled, err := backend.AlternativeSpeedLimits(ctx)
	if err != nil {
		return NewTextResult("Alternative speed limits toggled."), nil
	}
	if enabled {
		return NewTextResult("Alternative speed limits are now enabled."), nil
	}
	return NewTextResult("Alternative speed limits are now disabled."), nil
}
