// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package qbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// StartSearch starts a search job and returns its id. Empty plugins means
// "enabled", empty category means "all".
func (c *Client) StartSearch(ctx context.Context, pattern string, plugins []string, category string) (int, error) {
	pluginList := "enabled"
	if len(plugins) > 0 {
		pluginList = strings.Join(plugins, "|")
	}
	if category == "" {
		category = "all"
	}

	body, err := c.post(ctx, "/search/start", url.Values{
		"pattern":  {pattern},
		"plugins":  {pluginList},
		"category": {category},
	})
	if err != nil {
		return 0, err
	}

	var started struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &started); err != nil {
		return 0, fmt.Errorf("decode /search/start response: %w", err)
	}
	return started.ID, nil
}

// SearchStatus returns the state of a search job.
func (c *Client) SearchStatus(ctx context.Context, id int) (*SearchStatus, error) {
	var statuses []SearchStatus
	if err := c.getJSON(ctx, "/search/status", url.Values{"id": {strconv.Itoa(id)}}, &statuses); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("search job %d: no status reported", id)
	}
	return &statuses[0], nil
}

// SearchResults returns up to limit results of a search job starting at
// offset. A limit of zero returns everything.
func (c *Client) SearchResults(ctx context.Context, id, limit, offset int) (*SearchResults, error) {
	query := url.Values{"id": {strconv.Itoa(id)}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset != 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	results := &SearchResults{}
	if err := c.getJSON(ctx, "/search/results", query, results); err != nil {
		return nil, err
	}
	return results, nil
}

// StopSearch stops a running search job.
func (c *Client) StopSearch(ctx context.Context, id int) error {
	_, err := c.post(ctx, "/search/stop", url.Values{"id": {strconv.Itoa(id)}})
	return err
}

// DeleteSearch forgets a search job and its results.
func (c *Client) DeleteSearch(ctx context.Context, id int) error {
	_, err := c.post(ctx, "/search/delete", url.Values{"id": {strconv.Itoa(id)}})
	return err
}

// SearchPlugins lists installed search plugins.
func (c *Client) SearchPlugins(ctx context.Context) ([]SearchPlugin, error) {
	plugins := []SearchPlugin{}
	if err := c.getJSON(ctx, "/search/plugins", nil, &plugins); err != nil {
		return nil, err
	}
	return plugins, nil
}

// InstallSearchPlugins installs plugins from URLs or local paths.
func (c *Client) InstallSearchPlugins(ctx context.Context, sources []string) error {
	_, err := c.post(ctx, "/search/installPlugin", url.Values{"sources": {strings.Join(sources, "|")}})
	return err
}

// UninstallSearchPlugins removes plugins by name.
func (c *Client) UninstallSearchPlugins(ctx context.Context, names []string) error {
	_, err := c.post(ctx, "/search/uninstallPlugin", url.Values{"names": {strings.Join(names, "|")}})
	return err
}

// EnableSearchPlugins enables or disables plugins by name.
func (c *Client) EnableSearchPlugins(ctx context.Context, names []string, enable bool) error {
	_, err := c.post(ctx, "/search/enablePlugin", url.Values{
		"names":  {strings.Join(names, "|")},
		"enable": {strconv.FormatBool(enable)},
	})
	return err
}

// UpdateSearchPlugins updates every installed plugin.
func (c *Client) UpdateSearchPlugins(ctx context.Context) error {
	_, err := c.post(ctx, "/search/updatePlugins", nil)
	return err
}
