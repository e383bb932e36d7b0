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

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

// torrentFilters are the values accepted by /torrents/info.
var torrentFilters = []interface{}{
	"all", "downloading", "seeding", "completed", "stopped", "paused", "active",
	"inactive", "running", "resumed", "stalled", "stalled_uploading", "stalled_downloading", "errored",
}

func (s *Server) registerTorrentTools() {
	s.toolManager.registerTool(NewTool("list_torrents",
		WithDescription("List torrents with their state, progress and speeds, optionally filtered."),
		WithString("filter", Description("State filter"), Enum(torrentFilters...)),
		WithString("category", Description("Only torrents in this category")),
		WithString("tag", Description("Only torrents with this tag")),
		WithString("sort", Description("Field to sort by, e.g. name, size, progress, added_on")),
		WithBoolean("reverse", Description("Reverse the sort order")),
		WithInteger("limit", Description("Maximum number of torrents to return"), Min(0)),
		WithInteger("offset", Description("Number of torrents to skip")),
		withInstance(),
	), s.withBackend(listTorrents), visibleWhenRestricted())

	s.toolManager.registerTool(NewTool("get_torrent_properties",
		WithDescription("Get generic properties of a torrent: save path, ratio, peers, time active and more."),
		WithString("hash", Required(), Description("Torrent hash")),
		withInstance(),
	), s.withBackend(getTorrentProperties))

	s.toolManager.registerTool(NewTool("get_torrent_files",
		WithDescription("List the files of a torrent with size, progress and priority."),
		WithString("hash", Required(), Description("Torrent hash")),
		withInstance(),
	), s.withBackend(getTorrentFiles))

	s.toolManager.registerTool(NewTool("get_torrent_trackers",
		WithDescription("List the trackers of a torrent with their status."),
		WithString("hash", Required(), Description("Torrent hash")),
		withInstance(),
	), s.withBackend(getTorrentTrackers))

	s.toolManager.registerTool(NewTool("add_torrent",
		WithDescription("Add torrents from URLs or magnet links."),
		WithStringArray("urls", Required(), MinItems(1), Description("Torrent URLs or magnet links")),
		WithString("save_path", Description("Download folder")),
		WithString("category", Description("Category to assign")),
		WithStringArray("tags", Description("Tags to assign")),
		WithBoolean("paused", Description("Add the torrents stopped")),
		WithBoolean("skip_checking", Description("Skip hash checking")),
		WithBoolean("sequential", Description("Download pieces in order")),
		WithString("rename", Description("New torrent name")),
		WithInteger("upload_limit", Description("Upload limit in bytes/s"), Min(0)),
		WithInteger("download_limit", Description("Download limit in bytes/s"), Min(0)),
		withInstance(),
	), s.withBackend(addTorrent))

	s.toolManager.registerTool(NewTool("stop_torrents",
		WithDescription("Stop (pause) torrents. Use [\"all\"] for every torrent."),
		withHashes("Torrent hashes"),
		withInstance(),
	), s.withBackend(hashesAction("Stopped", Backend.StopTorrents)))

	s.toolManager.registerTool(NewTool("start_torrents",
		WithDescription("Start (resume) torrents. Use [\"all\"] for every torrent."),
		withHashes("Torrent hashes"),
		withInstance(),
	), s.withBackend(hashesAction("Started", Backend.StartTorrents)))

	s.toolManager.registerTool(NewTool("delete_torrents",
		WithDescription("Delete torrents, optionally together with their downloaded data."),
		withHashes("Torrent hashes"),
		WithBoolean("delete_files", Description("Also delete downloaded data"), Default(false)),
		withInstance(),
	), s.withBackend(deleteTorrents))

	s.toolManager.registerTool(NewTool("recheck_torrents",
		WithDescription("Force a hash recheck of torrents."),
		withHashes("Torrent hashes"),
		withInstance(),
	), s.withBackend(hashesAction("Rechecking", Backend.RecheckTorrents)))

	s.toolManager.registerTool(NewTool("reannounce_torrents",
		WithDescription("Reannounce torrents to their trackers."),
		withHashes("Torrent hashes"),
		withInstance(),
	), s.withBackend(hashesAction("Reannounced", Backend.ReannounceTorrents)))

	s.toolManager.registerTool(NewTool("set_torrent_category",
		WithDescription("Set the category of torrents. An empty category removes it."),
		withHashes("Torrent hashes"),
		WithString("category", Required(), Description("Category name, empty to clear")),
		withInstance(),
	), s.withBackend(setTorrentCategory))

	s.toolManager.registerTool(NewTool("add_torrent_tags",
		WithDescription("Attach tags to torrents."),
		withHashes("Torrent hashes"),
		WithStringArray("tags", Required(), MinItems(1), Description("Tags to attach")),
		withInstance(),
	), s.withBackend(tagsAction("Tagged", Backend.AddTags)))

	s.toolManager.registerTool(NewTool("remove_torrent_tags",
		WithDescription("Detach tags from torrents."),
		withHashes("Torrent hashes"),
		WithStringArray("tags", Required(), MinItems(1), Description("Tags to detach")),
		withInstance(),
	), s.withBackend(tagsAction("Untagged", Backend.RemoveTags)))

	s.toolManager.registerTool(NewTool("set_torrent_limits",
		WithDescription("Set per-torrent speed limits in bytes/s. 0 removes a limit."),
		withHashes("Torrent hashes"),
		WithInteger("download_limit", Description("Download limit in bytes/s"), Min(0)),
		WithInteger("upload_limit", Description("Upload limit in bytes/s"), Min(0)),
		withInstance(),
	), s.withBackend(setTorrentLimits))

	s.registerWaitTool()
}

// torrentList is the list_torrents result.
type torrentList struct {
	Count    int            `json:"count"`
	Torrents []qbit.Torrent `json:"torrents"`
}

func listTorrents(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	torrents, err := backend.Torrents(ctx, qbit.TorrentFilter{
		Filter:   stringArg(args, "filter"),
		Category: stringArg(args, "category"),
		Tag:      stringArg(args, "tag"),
		Sort:     stringArg(args, "sort"),
		Reverse:  boolArg(args, "reverse", false),
		Limit:    intArg(args, "limit", 0),
		Offset:   intArg(args, "offset", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}
	if torrents == nil {
		torrents = []qbit.Torrent{}
	}
	return jsonResult(torrentList{Count: len(torrents), Torrents: torrents})
}

func getTorrentProperties(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	hash, err := requiredString(args, "hash")
	if err != nil {
		return nil, err
	}
	props, err := backend.TorrentProperties(ctx, hash)
	if err != nil {
		return nil, torrentError(hash, err)
	}
	return jsonResult(props)
}

func getTorrentFiles(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	hash, err := requiredString(args, "hash")
	if err != nil {
		return nil, err
	}
	files, err := backend.TorrentFiles(ctx, hash)
	if err != nil {
		return nil, torrentError(hash, err)
	}
	return jsonResult(files)
}

func getTorrentTrackers(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	hash, err := requiredString(args, "hash")
	if err != nil {
		return nil, err
	}
	trackers, err := backend.TorrentTrackers(ctx, hash)
	if err != nil {
		return nil, torrentError(hash, err)
	}
	return jsonResult(trackers)
}

func addTorrent(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	urls, err := requiredStrings(args, "urls")
	if err != nil {
		return nil, err
	}
	opts := qbit.AddTorrentOptions{
		URLs:       urls,
		SavePath:   stringArg(args, "save_path"),
		Category:   stringArg(args, "category"),
		Tags:       stringsArg(args, "tags"),
		Paused:     boolArg(args, "paused", false),
		SkipCheck:  boolArg(args, "skip_checking", false),
		Sequential: boolArg(args, "sequential", false),
		RenameTo:   stringArg(args, "rename"),
	}
	if limit := optionalInt64Arg(args, "upload_limit"); limit != nil {
		opts.UploadLimit = *limit
	}
	if limit := optionalInt64Arg(args, "download_limit"); limit != nil {
		opts.DlLimit = *limit
	}
	if err := backend.AddTorrent(ctx, opts); err != nil {
		return nil, fmt.Errorf("add torrent: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Added %d torrent(s).", len(urls))), nil
}

// hashesAction builds a tool that applies action to a hash list.
func hashesAction(verb string, action func(Backend, context.Context, []string) error) toolFunc {
	return func(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
		hashes, err := requiredStrings(args, "hashes")
		if err != nil {
			return nil, err
		}
		if err := action(backend, ctx, hashes); err != nil {
			return nil, fmt.Errorf("%s %s: %w", strings.ToLower(verb), describeHashes(hashes), err)
		}
		return NewTextResult(fmt.Sprintf("%s %s.", verb, describeHashes(hashes))), nil
	}
}

// tagsAction builds a tool that applies a tag list to a hash list.
func tagsAction(verb string, action func(Backend, context.Context, []string, []string) error) toolFunc {
	return func(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
		hashes, err := requiredStrings(args, "hashes")
		if err != nil {
			return nil, err
		}
		tags, err := requiredStrings(args, "tags")
		if err != nil {
			return nil, err
		}
		if err := action(backend, ctx, hashes, tags); err != nil {
			return nil, fmt.Errorf("%s %s: %w", strings.ToLower(verb), describeHashes(hashes), err)
		}
		return NewTextResult(fmt.Sprintf("%s %s with %s.", verb, describeHashes(hashes), strings.Join(tags, ", "))), nil
	}
}

func deleteTorrents(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	hashes, err := requiredStrings(args, "hashes")
	if err != nil {
		return nil, err
	}
	deleteFiles := boolArg(args, "delete_files", false)
	if err := backend.DeleteTorrents(ctx, hashes, deleteFiles); err != nil {
		return nil, fmt.Errorf("delete %s: %w", describeHashes(hashes), err)
	}
	if deleteFiles {
		return NewTextResult(fmt.Sprintf("Deleted %s and their data.", describeHashes(hashes))), nil
	}
	return NewTextResult(fmt.Sprintf("Deleted %s, data kept.", describeHashes(hashes))), nil
}

func setTorrentCategory(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	hashes, err := requiredStrings(args, "hashes")
	if err != nil {
		return nil, err
	}
	category := stringArg(args, "category")
	if err := backend.SetCategory(ctx, hashes, category); err != nil {
		return nil, fmt.Errorf("set category of %s: %w", describeHashes(hashes), err)
	}
	if category == "" {
		return NewTextResult(fmt.Sprintf("Cleared the category of %s.", describeHashes(hashes))), nil
	}
	return NewTextResult(fmt.Sprintf("Moved %s to category %q.", describeHashes(hashes), category)), nil
}

func setTorrentLimits(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	hashes, err := requiredStrings(args, "hashes")
	if err != nil {
		return nil, err
	}
	download := optionalInt64Arg(args, "download_limit")
	upload := optionalInt64Arg(args, "upload_limit")
	if download == nil && upload == nil {
		return nil, fmt.Errorf("%w: download_limit or upload_limit", errors.ErrMissingParams)
	}
	if err := backend.SetTorrentLimits(ctx, hashes, download, upload); err != nil {
		return nil, fmt.Errorf("set limits of %s: %w", describeHashes(hashes), err)
	}
	return NewTextResult(fmt.Sprintf("Updated speed limits of %s.", describeHashes(hashes))), nil
}

// torrentError maps an unknown hash onto ErrTorrentNotFound.
func torrentError(hash string, err error) error {
	if errors.Is(err, qbit.ErrNotFound) {
		return fmt.Errorf("%w: %s", errors.ErrTorrentNotFound, hash)
	}
	return fmt.Errorf("torrent %s: %w", hash, err)
}

// describeHashes renders a hash list for confirmation messages.
func describeHashes(hashes []string) string {
	if len(hashes) == 1 {
		if hashes[0] == "all" {
			return "all torrents"
		}
		return "torrent " + hashes[0]
	}
	return fmt.Sprintf("%d torrents", len(hashes))
}
