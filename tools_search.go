// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

const (
	defaultSearchPollInterval = time.Second
	defaultSearchPollAttempts = 10
	defaultSearchLimit        = 50
	maxSearchLimit            = 500
	searchCleanupTimeout      = 5 * time.Second
)

func (s *Server) registerSearchTools() {
	s.toolManager.registerTool(NewTool("search_torrents",
		WithDescription(fmt.Sprintf(
			"Search torrents with the installed search plugins. Results are collected for up to %d seconds.",
			int(s.searchPolicy.interval.Seconds()*float64(s.searchPolicy.attempts)))),
		WithString("query", Required(), Description("Search pattern")),
		WithStringArray("plugins", Description("Plugins to use; defaults to every enabled plugin")),
		WithString("category", Description("Search category, e.g. movies, tv, software; defaults to all")),
		WithInteger("limit", Description("Maximum number of results"), Min(1), Max(maxSearchLimit), Default(defaultSearchLimit)),
		withInstance(),
	), s.withBackend(s.searchTorrents))

	s.toolManager.registerTool(NewTool("list_search_plugins",
		WithDescription("List installed search plugins."),
		withInstance(),
	), s.withBackend(listSearchPlugins))

	s.toolManager.registerTool(NewTool("install_search_plugin",
		WithDescription("Install search plugins from URLs or local file paths."),
		WithStringArray("sources", Required(), MinItems(1), Description("Plugin URLs or paths")),
		withInstance(),
	), s.withBackend(installSearchPlugins))

	s.toolManager.registerTool(NewTool("uninstall_search_plugin",
		WithDescription("Uninstall search plugins by name."),
		WithStringArray("names", Required(), MinItems(1), Description("Plugin names")),
		withInstance(),
	), s.withBackend(uninstallSearchPlugins))

	s.toolManager.registerTool(NewTool("enable_search_plugin",
		WithDescription("Enable or disable search plugins."),
		WithStringArray("names", Required(), MinItems(1), Description("Plugin names")),
		WithBoolean("enable", Description("true to enable, false to disable"), Default(true)),
		withInstance(),
	), s.withBackend(enableSearchPlugins))

	s.toolManager.registerTool(NewTool("update_search_plugins",
		WithDescription("Update every installed search plugin."),
		withInstance(),
	), s.withBackend(updateSearchPlugins))
}

// searchOutcome is the search_torrents result.
type searchOutcome struct {
	Query    string              `json:"query"`
	Status   string              `json:"status"`
	Complete bool                `json:"complete"`
	Total    int                 `json:"total"`
	Results  []qbit.SearchResult `json:"results"`
}

// searchTorrents runs one search job to completion or until the polling
// budget is spent. The job is always stopped and deleted afterwards.
func (s *Server) searchTorrents(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	query, err := requiredString(args, "query")
	if err != nil {
		return nil, err
	}
	limit := clampInt(intArg(args, "limit", defaultSearchLimit), 1, maxSearchLimit)

	id, err := backend.StartSearch(ctx, query, stringsArg(args, "plugins"), stringArg(args, "category"))
	if err != nil {
		return nil, fmt.Errorf("start search %q: %w", query, err)
	}
	defer s.cleanupSearch(ctx, backend, id)

	snapshot, lastErr := s.pollSearch(ctx, backend, id, limit)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if snapshot == nil {
		if lastErr != nil {
			return NewErrorResult(fmt.Sprintf("Search %q failed: %v", query, lastErr)), nil
		}
		snapshot = &qbit.SearchResults{Status: qbit.SearchRunning}
	}

	results := snapshot.Results
	if results == nil {
		results = []qbit.SearchResult{}
	}
	return jsonResult(searchOutcome{
		Query:    query,
		Status:   snapshot.Status,
		Complete: snapshot.Stopped(),
		Total:    snapshot.Total,
		Results:  results,
	})
}

// pollSearch polls the job up to the attempt budget and returns the last
// snapshot obtained together with the error of the last poll, if it failed.
// Failed polls consume budget.
func (s *Server) pollSearch(ctx context.Context, backend Backend, id, limit int) (*qbit.SearchResults, error) {
	var (
		snapshot *qbit.SearchResults
		lastErr  error
	)
	for attempt := 1; attempt <= s.searchPolicy.attempts; attempt++ {
		if err := sleepContext(ctx, s.clock, s.searchPolicy.interval); err != nil {
			return snapshot, lastErr
		}

		results, err := backend.SearchResults(ctx, id, limit, 0)
		if err != nil {
			s.logger.Warnf("Search job %d: poll %d/%d failed: %v", id, attempt, s.searchPolicy.attempts, err)
			lastErr = err
			continue
		}
		snapshot, lastErr = results, nil
		if results.Stopped() {
			break
		}
	}
	return snapshot, lastErr
}

// cleanupSearch stops and deletes a job. It runs even when ctx is already
// cancelled; its failures are only logged.
func (s *Server) cleanupSearch(ctx context.Context, backend Backend, id int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), searchCleanupTimeout)
	defer cancel()

	if err := backend.StopSearch(ctx, id); err != nil {
		s.logger.Debugf("Search job %d: stop failed: %v", id, err)
	}
	if err := backend.DeleteSearch(ctx, id); err != nil {
		s.logger.Debugf("Search job %d: delete failed: %v", id, err)
	}
}

func listSearchPlugins(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	plugins, err := backend.SearchPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list search plugins: %w", err)
	}
	return jsonResult(plugins)
}

func installSearchPlugins(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	sources, err := requiredStrings(args, "sources")
	if err != nil {
		return nil, err
	}
	if err := backend.InstallSearchPlugins(ctx, sources); err != nil {
		return nil, fmt.Errorf("install search plugins: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Installing %d search plugin(s): %s.", len(sources), strings.Join(sources, ", "))), nil
}

func uninstallSearchPlugins(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	names, err := requiredStrings(args, "names")
	if err != nil {
		return nil, err
	}
	if err := backend.UninstallSearchPlugins(ctx, names); err != nil {
		return nil, fmt.Errorf("uninstall search plugins: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Uninstalled search plugin(s): %s.", strings.Join(names, ", "))), nil
}

func enableSearchPlugins(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	names, err := requiredStrings(args, "names")
	if err != nil {
		return nil, err
	}
	enable := boolArg(args, "enable", true)
	if err := backend.EnableSearchPlugins(ctx, names, enable); err != nil {
		return nil, fmt.Errorf("enable search plugins: %w", err)
	}
	verb := "Enabled"
	if !enable {
		verb = "Disabled"
	}
	return NewTextResult(fmt.Sprintf("%s search plugin(s): %s.", verb, strings.Join(names, ", "))), nil
}

func updateSearchPlugins(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	if err := backend.UpdateSearchPlugins(ctx); err != nil {
		return nil, fmt.Errorf("update search plugins: %w", err)
	}
	return NewTextResult("Search plugin update started."), nil
}
