// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package qbit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Torrents lists torrents matching filter.
func (c *Client) Torrents(ctx context.Context, filter TorrentFilter) ([]Torrent, error) {
	query := url.Values{}
	if filter.Filter != "" {
		query.Set("filter", filter.Filter)
	}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.Tag != "" {
		query.Set("tag", filter.Tag)
	}
	if filter.Sort != "" {
		query.Set("sort", filter.Sort)
	}
	if filter.Reverse {
		query.Set("reverse", "true")
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset != 0 {
		query.Set("offset", strconv.Itoa(filter.Offset))
	}
	if len(filter.Hashes) > 0 {
		query.Set("hashes", joinHashes(filter.Hashes))
	}

	var torrents []Torrent
	if err := c.getJSON(ctx, "/torrents/info", query, &torrents); err != nil {
		return nil, err
	}
	return torrents, nil
}

// Torrent returns a single torrent, or ErrNotFound when the hash is unknown.
func (c *Client) Torrent(ctx context.Context, hash string) (*Torrent, error) {
	torrents, err := c.Torrents(ctx, TorrentFilter{Hashes: []string{hash}})
	if err != nil {
		return nil, err
	}
	for i := range torrents {
		if strings.EqualFold(torrents[i].Hash, hash) {
			return &torrents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
}

// TorrentProperties returns the generic properties of a torrent.
func (c *Client) TorrentProperties(ctx context.Context, hash string) (map[string]any, error) {
	var props map[string]any
	err := c.getJSON(ctx, "/torrents/properties", url.Values{"hash": {hash}}, &props)
	return props, notFoundOn404(err, hash)
}

// TorrentFiles returns the file list of a torrent.
func (c *Client) TorrentFiles(ctx context.Context, hash string) ([]map[string]any, error) {
	var files []map[string]any
	err := c.getJSON(ctx, "/torrents/files", url.Values{"hash": {hash}}, &files)
	return files, notFoundOn404(err, hash)
}

// TorrentTrackers returns the trackers of a torrent.
func (c *Client) TorrentTrackers(ctx context.Context, hash string) ([]map[string]any, error) {
	var trackers []map[string]any
	err := c.getJSON(ctx, "/torrents/trackers", url.Values{"hash": {hash}}, &trackers)
	return trackers, notFoundOn404(err, hash)
}

// AddTorrent adds torrents by URL or magnet link.
func (c *Client) AddTorrent(ctx context.Context, opts AddTorrentOptions) error {
	if len(opts.URLs) == 0 {
		return fmt.Errorf("add torrent: at least one url is required")
	}

	fields := map[string]string{"urls": strings.Join(opts.URLs, "\n")}
	if opts.SavePath != "" {
		fields["savepath"] = opts.SavePath
	}
	if opts.Category != "" {
		fields["category"] = opts.Category
	}
	if len(opts.Tags) > 0 {
		fields["tags"] = strings.Join(opts.Tags, ",")
	}
	if opts.Paused {
		// v4 reads "paused", v5 reads "stopped".
		fields["paused"] = "true"
		fields["stopped"] = "true"
	}
	if opts.SkipCheck {
		fields["skip_checking"] = "true"
	}
	if opts.Sequential {
		fields["sequentialDownload"] = "true"
	}
	if opts.RenameTo != "" {
		fields["rename"] = opts.RenameTo
	}
	if opts.UploadLimit > 0 {
		fields["upLimit"] = strconv.FormatInt(opts.UploadLimit, 10)
	}
	if opts.DlLimit > 0 {
		fields["dlLimit"] = strconv.FormatInt(opts.DlLimit, 10)
	}

	body, err := c.call(ctx, "/torrents/add", func() (*http.Request, error) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		for name, value := range fields {
			if err := writer.WriteField(name, value); err != nil {
				return nil, err
			}
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL("/torrents/add").String(), &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		c.decorate(req)
		return req, nil
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "Fails." {
		return fmt.Errorf("add torrent: rejected by qbittorrent")
	}
	return nil
}

// StopTorrents stops (pauses) torrents. Instances older than v5 only know
// the pause endpoint, so a 404 falls back to it.
func (c *Client) StopTorrents(ctx context.Context, hashes []string) error {
	return c.postWithFallback(ctx, "/torrents/stop", "/torrents/pause", url.Values{"hashes": {joinHashes(hashes)}})
}

// StartTorrents starts (resumes) torrents, falling back to resume on v4.
func (c *Client) StartTorrents(ctx context.Context, hashes []string) error {
	return c.postWithFallback(ctx, "/torrents/start", "/torrents/resume", url.Values{"hashes": {joinHashes(hashes)}})
}

// DeleteTorrents removes torrents, optionally with their data.
func (c *Client) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	_, err := c.post(ctx, "/torrents/delete", url.Values{
		"hashes":      {joinHashes(hashes)},
		"deleteFiles": {strconv.FormatBool(deleteFiles)},
	})
	return err
}

// RecheckTorrents forces a hash check.
func (c *Client) RecheckTorrents(ctx context.Context, hashes []string) error {
	_, err := c.post(ctx, "/torrents/recheck", url.Values{"hashes": {joinHashes(hashes)}})
	return err
}

// ReannounceTorrents reannounces torrents to their trackers.
func (c *Client) ReannounceTorrents(ctx context.Context, hashes []string) error {
	_, err := c.post(ctx, "/torrents/reannounce", url.Values{"hashes": {joinHashes(hashes)}})
	return err
}

// SetCategory assigns category to torrents; an empty category clears it.
func (c *Client) SetCategory(ctx context.Context, hashes []string, category string) error {
	_, err := c.post(ctx, "/torrents/setCategory", url.Values{
		"hashes":   {joinHashes(hashes)},
		"category": {category},
	})
	return err
}

// AddTags attaches tags to torrents.
func (c *Client) AddTags(ctx context.Context, hashes []string, tags []string) error {
	_, err := c.post(ctx, "/torrents/addTags", url.Values{
		"hashes": {joinHashes(hashes)},
		"tags":   {strings.Join(tags, ",")},
	})
	return err
}

// RemoveTags detaches tags from torrents.
func (c *Client) RemoveTags(ctx context.Context, hashes []string, tags []string) error {
	_, err := c.post(ctx, "/torrents/removeTags", url.Values{
		"hashes": {joinHashes(hashes)},
		"tags":   {strings.Join(tags, ",")},
	})
	return err
}

// SetTorrentLimits sets per-torrent speed limits in bytes/s. Nil leaves a
// limit unchanged, zero removes it.
func (c *Client) SetTorrentLimits(ctx context.Context, hashes []string, download, upload *int64) error {
	if download != nil {
		if _, err := c.post(ctx, "/torrents/setDownloadLimit", url.Values{
			"hashes": {joinHashes(hashes)},
			"limit":  {strconv.FormatInt(*download, 10)},
		}); err != nil {
			return err
		}
	}
	if upload != nil {
		if _, err := c.post(ctx, "/torrents/setUploadLimit", url.Values{
			"hashes": {joinHashes(hashes)},
			"limit":  {strconv.FormatInt(*upload, 10)},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Categories returns all categories keyed by name.
func (c *Client) Categories(ctx context.Context) (map[string]Category, error) {
	categories := map[string]Category{}
	if err := c.getJSON(ctx, "/torrents/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, name, savePath string) error {
	_, err := c.post(ctx, "/torrents/createCategory", url.Values{
		"category": {name},
		"savePath": {savePath},
	})
	return err
}

// RemoveCategories deletes categories.
func (c *Client) RemoveCategories(ctx context.Context, names []string) error {
	_, err := c.post(ctx, "/torrents/removeCategories", url.Values{"categories": {strings.Join(names, "\n")}})
	return err
}

// Tags returns all tags.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	tags := []string{}
	if err := c.getJSON(ctx, "/torrents/tags", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// CreateTags creates global tags.
func (c *Client) CreateTags(ctx context.Context, tags []string) error {
	_, err := c.post(ctx, "/torrents/createTags", url.Values{"tags": {strings.Join(tags, ",")}})
	return err
}

// DeleteTags deletes global tags.
func (c *Client) DeleteTags(ctx context.Context, tags []string) error {
	_, err := c.post(ctx, "/torrents/deleteTags", url.Values{"tags": {strings.Join(tags, ",")}})
	return err
}

func (c *Client) postWithFallback(ctx context.Context, endpoint, legacy string, form url.Values) error {
	_, err := c.post(ctx, endpoint, form)
	if IsStatus(err, http.StatusNotFound) {
		_, err = c.post(ctx, legacy, form)
	}
	return err
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	body, err := c.get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// ErrNotFound reports an unknown torrent hash.
var ErrNotFound = errors.New("torrent not found")

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// notFoundOn404 maps the WebUI's 404 for unknown hashes onto ErrNotFound.
func notFoundOn404(err error, hash string) error {
	if IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return err
}
