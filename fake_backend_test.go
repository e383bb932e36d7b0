// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

// fakeBackend is an in-memory Backend. Methods a test does not need fall
// through to the nil embedded interface and panic, which the recovery
// middleware turns into an error.
type fakeBackend struct {
	Backend

	mu sync.Mutex

	torrents []qbit.Torrent
	// torrentStates, when set, is consumed by Torrent one entry per call;
	// the last entry repeats.
	torrentStates []qbit.Torrent
	torrentCalls  int
	torrentErr    error
	// missingAfter makes Torrent report the torrent gone after that many calls.
	missingAfter int

	stopped []string

	searchID      int
	searchStart   error
	searchPolls   []searchPoll
	searchCalls   int
	searchStops   []int
	searchDeletes []int
	stopErr       error

	transfer    *qbit.TransferInfo
	altLimits   bool
	categories  map[string]qbit.Category
	preferences map[string]any
}

// searchPoll is one scripted SearchResults answer.
type searchPoll struct {
	results *qbit.SearchResults
	err     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		torrents: []qbit.Torrent{
			{Hash: "aaa", Name: "ubuntu.iso", State: "downloading", Progress: 0.5},
			{Hash: "bbb", Name: "debian.iso", State: "uploading", Progress: 1},
		},
		transfer:    &qbit.TransferInfo{DlInfoSpeed: 1024, ConnectionStatus: "connected"},
		categories:  map[string]qbit.Category{"linux": {Name: "linux", SavePath: "/data/linux"}},
		preferences: map[string]any{"max_active_downloads": float64(3)},
		searchID:    7,
	}
}

func (f *fakeBackend) Torrents(ctx context.Context, filter qbit.TorrentFilter) ([]qbit.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]qbit.Torrent(nil), f.torrents...), nil
}

func (f *fakeBackend) Torrent(ctx context.Context, hash string) (*qbit.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torrentCalls++
	if f.torrentErr != nil {
		return nil, f.torrentErr
	}
	if f.missingAfter > 0 && f.torrentCalls > f.missingAfter {
		return nil, qbit.ErrNotFound
	}
	if len(f.torrentStates) > 0 {
		i := f.torrentCalls - 1
		if i >= len(f.torrentStates) {
			i = len(f.torrentStates) - 1
		}
		torrent := f.torrentStates[i]
		return &torrent, nil
	}
	for _, torrent := range f.torrents {
		if torrent.Hash == hash {
			torrent := torrent
			return &torrent, nil
		}
	}
	return nil, qbit.ErrNotFound
}

func (f *fakeBackend) StopTorrents(ctx context.Context, hashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, hashes...)
	return nil
}

func (f *fakeBackend) StartSearch(ctx context.Context, pattern string, plugins []string, category string) (int, error) {
	if f.searchStart != nil {
		return 0, f.searchStart
	}
	return f.searchID, nil
}

func (f *fakeBackend) SearchResults(ctx context.Context, id, limit, offset int) (*qbit.SearchResults, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if len(f.searchPolls) == 0 {
		return &qbit.SearchResults{Status: qbit.SearchRunning}, nil
	}
	i := f.searchCalls - 1
	if i >= len(f.searchPolls) {
		i = len(f.searchPolls) - 1
	}
	return f.searchPolls[i].results, f.searchPolls[i].err
}

func (f *fakeBackend) StopSearch(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchStops = append(f.searchStops, id)
	return f.stopErr
}

func (f *fakeBackend) DeleteSearch(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchDeletes = append(f.searchDeletes, id)
	return nil
}

func (f *fakeBackend) TransferInfo(ctx context.Context) (*qbit.TransferInfo, error) {
	return f.transfer, nil
}

func (f *fakeBackend) AlternativeSpeedLimits(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.altLimits, nil
}

func (f *fakeBackend) ToggleAlternativeSpeedLimits(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.altLimits = !f.altLimits
	return nil
}

func (f *fakeBackend) Categories(ctx context.Context) (map[string]qbit.Category, error) {
	return f.categories, nil
}

func (f *fakeBackend) Preferences(ctx context.Context) (map[string]any, error) {
	return f.preferences, nil
}

func (f *fakeBackend) SetPreferences(ctx context.Context, prefs map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range prefs {
		f.preferences[k] = v
	}
	return nil
}

func (f *fakeBackend) calls() (torrent, search int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.torrentCalls, f.searchCalls
}

func (f *fakeBackend) searchCleanup() (stops, deletes []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.searchStops...), append([]int(nil), f.searchDeletes...)
}

// newTestServer builds a server around backend with a fake clock and a
// silent logger.
func newTestServer(t *testing.T, backend Backend, opts ...ServerOption) (*Server, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	opts = append([]ServerOption{
		WithServerLogger(NewNopLogger()),
		WithClock(clock),
	}, opts...)
	return NewServer("qbit-test", "1.0.0", SingleInstance("default", backend), opts...), clock
}

// advance waits for the polling handler to sleep, then moves the clock
// forward, once per step.
func advance(clock clockwork.FakeClock, steps ...time.Duration) {
	for _, d := range steps {
		clock.BlockUntil(1)
		clock.Advance(d)
	}
}

// request builds a decoded request with the given id and params.
func request(t *testing.T, id interface{}, method string, params interface{}) *JSONRPCRequest {
	t.Helper()
	req := &JSONRPCRequest{JSONRPC: JSONRPCVersion, ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = data
	}
	return req
}

// callTool runs a tools/call through the router and returns the result.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) (*CallToolResult, *JSONRPCError) {
	t.Helper()
	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	resp := s.handleMessage(context.Background(), request(t, 1, MethodToolsCall, params))
	switch r := resp.(type) {
	case *JSONRPCError:
		return nil, r
	case *JSONRPCResponse:
		result, ok := r.Result.(*CallToolResult)
		require.True(t, ok, "unexpected result type %T", r.Result)
		return result, nil
	default:
		t.Fatalf("unexpected response type %T", resp)
		return nil, nil
	}
}

// resultText returns the text of a single-item result.
func resultText(t *testing.T, result *CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(TextContent)
	require.True(t, ok)
	return text.Text
}
