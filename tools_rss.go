// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"
)

func (s *Server) registerRSSTools() {
	s.toolManager.registerTool(NewTool("list_rss_feeds",
		WithDescription("List RSS folders and feeds, optionally with their articles."),
		WithBoolean("with_data", Description("Include feed articles"), Default(false)),
		withInstance(),
	), s.withBackend(listRSSFeeds))

	s.toolManager.registerTool(NewTool("add_rss_feed",
		WithDescription("Subscribe to an RSS feed."),
		WithString("url", Required(), Description("Feed URL")),
		WithString("path", Description("Folder path and name of the feed, e.g. Linux\\Distros")),
		withInstance(),
	), s.withBackend(addRSSFeed))

	s.toolManager.registerTool(NewTool("remove_rss_item",
		WithDescription("Remove an RSS feed or folder."),
		WithString("path", Required(), Description("Item path")),
		withInstance(),
	), s.withBackend(removeRSSItem))

	s.toolManager.registerTool(NewTool("refresh_rss_item",
		WithDescription("Refresh an RSS feed or folder."),
		WithString("path", Required(), Description("Item path")),
		withInstance(),
	), s.withBackend(refreshRSSItem))

	s.toolManager.registerTool(NewTool("list_rss_rules",
		WithDescription("List RSS auto-download rules."),
		withInstance(),
	), s.withBackend(listRSSRules))

	s.toolManager.registerTool(NewTool("set_rss_rule",
		WithDescription("Create or replace an RSS auto-download rule."),
		WithString("name", Required(), Description("Rule name")),
		WithObject("definition", Required(), Description("Rule definition as accepted by the WebUI, e.g. mustContain, affectedFeeds, assignedCategory")),
		withInstance(),
	), s.withBackend(setRSSRule))
}

func listRSSFeeds(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	items, err := backend.RSSItems(ctx, boolArg(args, "with_data", false))
	if err != nil {
		return nil, fmt.Errorf("list rss feeds: %w", err)
	}
	return jsonResult(items)
}

func addRSSFeed(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	url, err := requiredString(args, "url")
	if err != nil {
		return nil, err
	}
	if err := backend.AddRSSFeed(ctx, url, stringArg(args, "path")); err != nil {
		return nil, fmt.Errorf("add rss feed: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Subscribed to %s.", url)), nil
}

func removeRSSItem(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	path, err := requiredString(args, "path")
	if err != nil {
		return nil, err
	}
	if err := backend.RemoveRSSItem(ctx, path); err != nil {
		return nil, fmt.Errorf("remove rss item: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Removed RSS item %q.", path)), nil
}

func refreshRSSItem(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	path, err := requiredString(args, "path")
	if err != nil {
		return nil, err
	}
	if err := backend.RefreshRSSItem(ctx, path); err != nil {
		return nil, fmt.Errorf("refresh rss item: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Refreshing RSS item %q.", path)), nil
}

func listRSSRules(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	rules, err := backend.RSSRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rss rules: %w", err)
	}
	return jsonResult(rules)
}

func setRSSRule(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	name, err := requiredString(args, "name")
	if err != nil {
		return nil, err
	}
	def, err := objectArg(args, "definition")
	if err != nil {
		return nil, err
	}
	if err := backend.SetRSSRule(ctx, name, def); err != nil {
		return nil, fmt.Errorf("set rss rule: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Saved RSS rule %q.", name)), nil
}
