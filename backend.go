// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

// Backend is the torrent backend consumed by the tool handlers. Every
// method is one request/response call; *qbit.Client implements it.
type Backend interface {
	// Torrents
	Torrents(ctx context.Context, filter qbit.TorrentFilter) ([]qbit.Torrent, error)
	Torrent(ctx context.Context, hash string) (*qbit.Torrent, error)
	TorrentProperties(ctx context.Context, hash string) (map[string]any, error)
	TorrentFiles(ctx context.Context, hash string) ([]map[string]any, error)
	TorrentTrackers(ctx context.Context, hash string) ([]map[string]any, error)
	AddTorrent(ctx context.Context, opts qbit.AddTorrentOptions) error
	StopTorrents(ctx context.Context, hashes []string) error
	StartTorrents(ctx context.Context, hashes []string) error
	DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error
	RecheckTorrents(ctx context.Context, hashes []string) error
	ReannounceTorrents(ctx context.Context, hashes []string) error
	SetCategory(ctx context.Context, hashes []string, category string) error
	AddTags(ctx context.Context, hashes []string, tags []string) error
	RemoveTags(ctx context.Context, hashes []string, tags []string) error
	SetTorrentLimits(ctx context.Context, hashes []string, download, upload *int64) error

	// Categories and tags
	Categories(ctx context.Context) (map[string]qbit.Category, error)
	CreateCategory(ctx context.Context, name, savePath string) error
	RemoveCategories(ctx context.Context, names []string) error
	Tags(ctx context.Context) ([]string, error)
	CreateTags(ctx context.Context, tags []string) error
	DeleteTags(ctx context.Context, tags []string) error

	// Search
	StartSearch(ctx context.Context, pattern string, plugins []string, category string) (int, error)
	SearchResults(ctx context.Context, id, limit, offset int) (*qbit.SearchResults, error)
	StopSearch(ctx context.Context, id int) error
	DeleteSearch(ctx context.Context, id int) error
	SearchPlugins(ctx context.Context) ([]qbit.SearchPlugin, error)
	InstallSearchPlugins(ctx context.Context, sources []string) error
	UninstallSearchPlugins(ctx context.Context, names []string) error
	EnableSearchPlugins(ctx context.Context, names []string, enable bool) error
	UpdateSearchPlugins(ctx context.Context) error

	// Transfer
	TransferInfo(ctx context.Context) (*qbit.TransferInfo, error)
	AlternativeSpeedLimits(ctx context.Context) (bool, error)
	ToggleAlternativeSpeedLimits(ctx context.Context) error
	SetGlobalLimits(ctx context.Context, download, upload *int64) error

	// RSS
	RSSItems(ctx context.Context, withData bool) (map[string]any, error)
	AddRSSFeed(ctx context.Context, feedURL, path string) error
	RemoveRSSItem(ctx context.Context, path string) error
	RefreshRSSItem(ctx context.Context, path string) error
	RSSRules(ctx context.Context) (map[string]any, error)
	SetRSSRule(ctx context.Context, name string, def map[string]any) error

	// Application and log
	AppVersion(ctx context.Context) (app string, api string, err error)
	Preferences(ctx context.Context) (map[string]any, error)
	SetPreferences(ctx context.Context, prefs map[string]any) error
	MainLog(ctx context.Context, opts qbit.LogOptions) ([]qbit.LogEntry, error)
}

var _ Backend = (*qbit.Client)(nil)

// InstanceSet routes calls to named backends. The first instance added is
// the default one.
type InstanceSet struct {
	mu          sync.RWMutex
	backends    map[string]Backend
	defaultName string
}

// NewInstanceSet creates an empty instance set.
func NewInstanceSet() *InstanceSet {
	return &InstanceSet{backends: make(map[string]Backend)}
}

// SingleInstance wraps one backend under the given name.
func SingleInstance(name string, backend Backend) *InstanceSet {
	set := NewInstanceSet()
	_ = set.Add(name, backend)
	return set
}

// Add registers a backend under name.
func (s *InstanceSet) Add(name string, backend Backend) error {
	if name == "" {
		return fmt.Errorf("instance name is required")
	}
	if backend == nil {
		return fmt.Errorf("instance %q: backend is nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.backends[name]; exists {
		return fmt.Errorf("instance %q already registered", name)
	}
	s.backends[name] = backend
	if s.defaultName == "" {
		s.defaultName = name
	}
	return nil
}

// Get resolves an instance; an empty name selects the default instance.
func (s *InstanceSet) Get(name string) (Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		name = s.defaultName
	}
	backend, ok := s.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrInstanceNotFound, name)
	}
	return backend, nil
}

// Default returns the name of the default instance.
func (s *InstanceSet) Default() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultName
}

// Names returns every instance name, default first, the rest sorted.
func (s *InstanceSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		if name != s.defaultName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if s.defaultName != "" {
		names = append([]string{s.defaultName}, names...)
	}
	return names
}

// Len returns the number of instances.
func (s *InstanceSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.backends)
}
