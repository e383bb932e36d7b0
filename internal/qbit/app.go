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

// AppVersion returns the application and WebUI API versions.
func (c *Client) AppVersion(ctx context.Context) (app string, api string, err error) {
	body, err := c.get(ctx, "/app/version", nil)
	if err != nil {
		return "", "", err
	}
	apiBody, err := c.get(ctx, "/app/webapiVersion", nil)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(string(body)), strings.TrimSpace(string(apiBody)), nil
}

// Preferences returns the application preferences.
func (c *Client) Preferences(ctx context.Context) (map[string]any, error) {
	prefs := map[string]any{}
	if err := c.getJSON(ctx, "/app/preferences", nil, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// SetPreferences changes the given preference keys only.
func (c *Client) SetPreferences(ctx context.Context, prefs map[string]any) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = c.post(ctx, "/app/setPreferences", url.Values{"json": {string(data)}})
	return err
}

// MainLog returns main log entries selected by opts.
func (c *Client) MainLog(ctx context.Context, opts LogOptions) ([]LogEntry, error) {
	query := url.Values{
		"normal":   {strconv.FormatBool(opts.Normal)},
		"info":     {strconv.FormatBool(opts.Info)},
		"warning":  {strconv.FormatBool(opts.Warning)},
		"critical": {strconv.FormatBool(opts.Critical)},
	}
	if opts.LastKnownID > 0 {
		query.Set("last_known_id", strconv.Itoa(opts.LastKnownID))
	}

	entries := []LogEntry{}
	if err := c.getJSON(ctx, "/log/main", query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// TransferInfo returns the global transfer state.
func (c *Client) TransferInfo(ctx context.Context) (*TransferInfo, error) {
	info := &TransferInfo{}
	if err := c.getJSON(ctx, "/transfer/info", nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// AlternativeSpeedLimits reports whether alternative limits are active.
func (c *Client) AlternativeSpeedLimits(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "/transfer/speedLimitsMode", nil)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(body)) == "1", nil
}

// ToggleAlternativeSpeedLimits flips the alternative speed limit mode.
func (c *Client) ToggleAlternativeSpeedLimits(ctx context.Context) error {
	_, err := c.post(ctx, "/transfer/toggleSpeedLimitsMode", nil)
	return err
}

// SetGlobalLimits sets the global speed limits in bytes/s. Nil leaves a
// limit unchanged, zero removes it.
func (c *Client) SetGlobalLimits(ctx context.Context, download, upload *int64) error {
	if download != nil {
		if _, err := c.post(ctx, "/transfer/setDownloadLimit", url.Values{
			"limit": {strconv.FormatInt(*download, 10)},
		}); err != nil {
			return err
		}
	}
	if upload != nil {
		if _, err := c.post(ctx, "/transfer/setUploadLimit", url.Values{
			"limit": {strconv.FormatInt(*upload, 10)},
		}); err != nil {
			return err
		}
	}
	return nil
}

// RSSItems returns the RSS folder tree, with articles when withData is set.
func (c *Client) RSSItems(ctx context.Context, withData bool) (map[string]any, error) {
	items := map[string]any{}
	if err := c.getJSON(ctx, "/rss/items", url.Values{"withData": {strconv.FormatBool(withData)}}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddRSSFeed subscribes to a feed, optionally under a folder path.
func (c *Client) AddRSSFeed(ctx context.Context, feedURL, path string) error {
	form := url.Values{"url": {feedURL}}
	if path != "" {
		form.Set("path", path)
	}
	_, err := c.post(ctx, "/rss/addFeed", form)
	return err
}

// RemoveRSSItem removes a feed or folder.
func (c *Client) RemoveRSSItem(ctx context.Context, path string) error {
	_, err := c.post(ctx, "/rss/removeItem", url.Values{"path": {path}})
	return err
}

// RefreshRSSItem refreshes a feed or folder.
func (c *Client) RefreshRSSItem(ctx context.Context, path string) error {
	_, err := c.post(ctx, "/rss/refreshItem", url.Values{"itemPath": {path}})
	return err
}

// RSSRules returns all auto-download rules keyed by name.
func (c *Client) RSSRules(ctx context.Context) (map[string]any, error) {
	rules := map[string]any{}
	if err := c.getJSON(ctx, "/rss/rules", nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SetRSSRule creates or replaces an auto-download rule.
func (c *Client) SetRSSRule(ctx context.Context, name string, def map[string]any) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode rss rule: %w", err)
	}
	_, err = c.post(ctx, "/rss/setRule", url.Values{
		"ruleName": {name},
		"ruleDef":  {string(data)},
	})
	return err
}
