// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package qbit

import (
	"encoding/json"
)

// Torrent is one entry of /torrents/info.
type Torrent struct {
	Hash         string  `json:"hash"`
	Name         string  `json:"name"`
	State        string  `json:"state"`
	Progress     float64 `json:"progress"`
	Size         int64   `json:"size"`
	Downloaded   int64   `json:"downloaded"`
	Uploaded     int64   `json:"uploaded"`
	AmountLeft   int64   `json:"amount_left"`
	DlSpeed      int64   `json:"dlspeed"`
	UpSpeed      int64   `json:"upspeed"`
	Eta          int64   `json:"eta"`
	Ratio        float64 `json:"ratio"`
	NumSeeds     int     `json:"num_seeds"`
	NumLeechs    int     `json:"num_leechs"`
	Category     string  `json:"category"`
	Tags         string  `json:"tags"`
	SavePath     string  `json:"save_path"`
	AddedOn      int64   `json:"added_on"`
	CompletionOn int64   `json:"completion_on"`
	Tracker      string  `json:"tracker"`
}

// TorrentFilter narrows /torrents/info.
type TorrentFilter struct {
	// Filter is one of all, downloading, seeding, completed, stopped,
	// active, inactive, running, stalled, errored.
	Filter   string
	Category string
	Tag      string
	Sort     string
	Reverse  bool
	Limit    int
	Offset   int
	Hashes   []string
}

// AddTorrentOptions describes a /torrents/add call.
type AddTorrentOptions struct {
	URLs        []string
	SavePath    string
	Category    string
	Tags        []string
	Paused      bool
	SkipCheck   bool
	Sequential  bool
	RenameTo    string
	UploadLimit int64
	DlLimit     int64
}

// Category is a torrent category.
type Category struct {
	Name     string `json:"name"`
	SavePath string `json:"savePath"`
}

// TransferInfo is the global transfer state.
type TransferInfo struct {
	DlInfoSpeed      int64  `json:"dl_info_speed"`
	DlInfoData       int64  `json:"dl_info_data"`
	UpInfoSpeed      int64  `json:"up_info_speed"`
	UpInfoData       int64  `json:"up_info_data"`
	DlRateLimit      int64  `json:"dl_rate_limit"`
	UpRateLimit      int64  `json:"up_rate_limit"`
	DHTNodes         int64  `json:"dht_nodes"`
	ConnectionStatus string `json:"connection_status"`
}

// LogOptions selects /log/main entries.
type LogOptions struct {
	Normal      bool
	Info        bool
	Warning     bool
	Critical    bool
	LastKnownID int
}

// LogEntry is one line of the main log.
type LogEntry struct {
	ID        int    `json:"id"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Type      int    `json:"type"`
}

// Search job states reported by /search/status.
const (
	SearchRunning = "Running"
	SearchStopped = "Stopped"
)

// SearchStatus is the state of one search job.
type SearchStatus struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// SearchResult is one hit of a search job.
type SearchResult struct {
	FileName   string `json:"fileName"`
	FileURL    string `json:"fileUrl"`
	FileSize   int64  `json:"fileSize"`
	NbSeeders  int64  `json:"nbSeeders"`
	NbLeechers int64  `json:"nbLeechers"`
	SiteURL    string `json:"siteUrl"`
	DescrLink  string `json:"descrLink"`
}

// SearchResults is a page of /search/results.
type SearchResults struct {
	Results []SearchResult `json:"results"`
	Status  string         `json:"status"`
	Total   int            `json:"total"`
}

// Stopped reports whether the job has reached its terminal state.
func (r *SearchResults) Stopped() bool {
	return r != nil && r.Status == SearchStopped
}

// SearchPlugin is an installed search plugin.
type SearchPlugin struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Enabled  bool   `json:"enabled"`
	Version  string `json:"version"`
	URL      string `json:"url"`
	// SupportedCategories changed shape between WebUI versions, so it is
	// passed through untouched.
	SupportedCategories json.RawMessage `json:"supportedCategories,omitempty"`
}
