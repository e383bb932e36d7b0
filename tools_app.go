// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

// showAllToolsText is returned by every show_all_tools call, whether or
// not it changed the visible set.
const showAllToolsText = "All qBittorrent tools are now available. Call tools/list to see them."

// Log levels accepted by get_main_log.
var logLevels = []interface{}{"normal", "info", "warning", "critical"}

func (s *Server) registerAppTools() {
	s.toolManager.registerTool(NewTool("get_app_version",
		WithDescription("Get the qBittorrent application and WebUI API versions."),
		withInstance(),
	), s.withBackend(getAppVersion))

	s.toolManager.registerTool(NewTool("get_app_preferences",
		WithDescription("Get the qBittorrent application preferences."),
		withInstance(),
	), s.withBackend(getAppPreferences))

	s.toolManager.registerTool(NewTool("set_app_preferences",
		WithDescription("Change qBittorrent preferences. Only the given keys are modified."),
		WithObject("preferences", Required(), Description("Preference keys and values, e.g. {\"max_active_downloads\": 5}")),
		withInstance(),
	), s.withBackend(setAppPreferences))

	s.toolManager.registerTool(NewTool("get_main_log",
		WithDescription("Get entries of the qBittorrent main log."),
		WithStringArray("levels", Description("Levels to include. Defaults to all levels."), Enum(logLevels...)),
		WithInteger("last_known_id", Description("Only return entries newer than this id"), Min(0)),
		WithInteger("limit", Description("Return at most this many of the newest entries"), Default(100), Min(1)),
		withInstance(),
	), s.withBackend(getMainLog))

	s.toolManager.registerTool(NewTool("list_instances",
		WithDescription("List the configured qBittorrent instances. The first one is the default."),
	), s.listInstances)

	s.toolManager.registerTool(NewTool("show_all_tools",
		WithDescription("Make every qBittorrent tool available. Call this when the tool you need is not listed."),
	), s.showAllTools, visibleWhenRestricted())
}

func getAppVersion(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	app, api, err := backend.AppVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get app version: %w", err)
	}
	return jsonResult(map[string]string{
		"application": app,
		"web_api":     api,
	})
}

func getAppPreferences(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	prefs, err := backend.Preferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return jsonResult(prefs)
}

func setAppPreferences(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	prefs, err := objectArg(args, "preferences")
	if err != nil {
		return nil, err
	}
	if err := backend.SetPreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("set preferences: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Updated %d preference(s).", len(prefs))), nil
}

func getMainLog(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	opts := qbit.LogOptions{LastKnownID: intArg(args, "last_known_id", 0)}
	levels := stringsArg(args, "levels")
	if len(levels) == 0 {
		opts.Normal, opts.Info, opts.Warning, opts.Critical = true, true, true, true
	}
	for _, level := range levels {
		switch level {
		case "normal":
			opts.Normal = true
		case "info":
			opts.Info = true
		case "warning":
			opts.Warning = true
		case "critical":
			opts.Critical = true
		}
	}

	entries, err := backend.MainLog(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("get main log: %w", err)
	}
	if limit := intArg(args, "limit", 100); limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return jsonResult(entries)
}

func (s *Server) listInstances(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"default":   s.instances.Default(),
		"instances": s.instances.Names(),
	})
}

func (s *Server) showAllTools(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
	if s.visibility.reveal() {
		markRevealed(ctx)
		s.logger.Info("All tools revealed, tools/list_changed armed")
	}
	return NewTextResult(showAllToolsText), nil
}
