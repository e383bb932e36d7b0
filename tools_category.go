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
)

func (s *Server) registerCategoryTools() {
	s.toolManager.registerTool(NewTool("list_categories",
		WithDescription("List torrent categories and their save paths."),
		withInstance(),
	), s.withBackend(listCategories))

	s.toolManager.registerTool(NewTool("create_category",
		WithDescription("Create a torrent category."),
		WithString("name", Required(), Description("Category name")),
		WithString("save_path", Description("Save path for torrents in this category")),
		withInstance(),
	), s.withBackend(createCategory))

	s.toolManager.registerTool(NewTool("remove_categories",
		WithDescription("Remove torrent categories."),
		WithStringArray("names", Required(), MinItems(1), Description("Category names")),
		withInstance(),
	), s.withBackend(removeCategories))

	s.toolManager.registerTool(NewTool("list_tags",
		WithDescription("List all torrent tags."),
		withInstance(),
	), s.withBackend(listTags))

	s.toolManager.registerTool(NewTool("create_tags",
		WithDescription("Create torrent tags."),
		WithStringArray("tags", Required(), MinItems(1), Description("Tag names")),
		withInstance(),
	), s.withBackend(createTags))

	s.toolManager.registerTool(NewTool("delete_tags",
		WithDescription("Delete torrent tags."),
		WithStringArray("tags", Required(), MinItems(1), Description("Tag names")),
		withInstance(),
	), s.withBackend(deleteTags))
}

func listCategories(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	categories, err := backend.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return jsonResult(categories)
}

func createCategory(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	name, err := requiredString(args, "name")
	if err != nil {
		return nil, err
	}
	if err := backend.CreateCategory(ctx, name, stringArg(args, "save_path")); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Created category %q.", name)), nil
}

func removeCategories(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	names, err := requiredStrings(args, "names")
	if err != nil {
		return nil, err
	}
	if err := backend.RemoveCategories(ctx, names); err != nil {
		return nil, fmt.Errorf("remove categories: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Removed categories: %s.", strings.Join(names, ", "))), nil
}

func listTags(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	tags, err := backend.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return jsonResult(tags)
}

func createTags(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	tags, err := requiredStrings(args, "tags")
	if err != nil {
		return nil, err
	}
	if err := backend.CreateTags(ctx, tags); err != nil {
		return nil, fmt.Errorf("create tags: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Created tags: %s.", strings.Join(tags, ", "))), nil
}

func deleteTags(ctx context.Context, backend Backend, args map[string]interface{}) (*CallToolResult, error) {
	tags, err := requiredStrings(args, "tags")
	if err != nil {
		return nil, err
	}
	if err := backend.DeleteTags(ctx, tags); err != nil {
		return nil, fmt.Errorf("delete tags: %w", err)
	}
	return NewTextResult(fmt.Sprintf("Deleted tags: %s.", strings.Join(tags, ", "))), nil
}
