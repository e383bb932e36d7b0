// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yosida95/uritemplate/v3"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/qbit"
)

// Resource names addressable through resources/read.
const (
	ResourceTorrents   = "torrents"
	ResourceTransfer   = "transfer"
	ResourceCategories = "categories"
)

// resourceScheme prefixes every resource URI.
const resourceScheme = "qbittorrent://"

// Resource URIs are either qbittorrent://<resource> for the default
// instance or qbittorrent://<instance>/<resource>. The instance template is
// tried first.
var (
	instanceResourceTemplate = uritemplate.MustNew(resourceScheme + "{instance}/{resource}")
	defaultResourceTemplate  = uritemplate.MustNew(resourceScheme + "{resource}")
)

// resourceReader produces the JSON body of a resource.
type resourceReader func(ctx context.Context, backend Backend) (interface{}, error)

// registeredResource is a logical resource, readable on every instance.
type registeredResource struct {
	name        string
	description string
	reader      resourceReader
}

// resourceManager serves the read-only resources.
type resourceManager struct {
	mu             sync.RWMutex
	instances      *InstanceSet
	resources      map[string]*registeredResource
	resourcesOrder []string
}

// newResourceManager creates a resource manager with the built-in
// torrent list, transfer info and categories resources.
func newResourceManager(instances *InstanceSet) *resourceManager {
	m := &resourceManager{
		instances: instances,
		resources: make(map[string]*registeredResource),
	}
	m.registerResource(ResourceTorrents, "All torrents with their state and progress",
		func(ctx context.Context, backend Backend) (interface{}, error) {
			torrents, err := backend.Torrents(ctx, qbit.TorrentFilter{})
			if err != nil {
				return nil, err
			}
			if torrents == nil {
				torrents = []qbit.Torrent{}
			}
			return torrents, nil
		})
	m.registerResource(ResourceTransfer, "Global transfer statistics",
		func(ctx context.Context, backend Backend) (interface{}, error) {
			return backend.TransferInfo(ctx)
		})
	m.registerResource(ResourceCategories, "Torrent categories and their save paths",
		func(ctx context.Context, backend Backend) (interface{}, error) {
			return backend.Categories(ctx)
		})
	return m
}

// registerResource adds or replaces a logical resource.
func (m *resourceManager) registerResource(name, description string, reader resourceReader) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.resources[name]; !exists {
		m.resourcesOrder = append(m.resourcesOrder, name)
	}
	m.resources[name] = &registeredResource{name: name, description: description, reader: reader}
}

// listResources lists every resource of the default instance, plus the
// instance-qualified URIs when more than one instance is configured.
func (m *resourceManager) listResources() []Resource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	if m.instances.Len() > 1 {
		names = m.instances.Names()
	}

	resources := make([]Resource, 0, len(m.resourcesOrder)*(1+len(names)))
	for _, name := range m.resourcesOrder {
		res := m.resources[name]
		resources = append(resources, Resource{
			URI:         resourceScheme + name,
			Name:        name,
			Description: res.description,
			MimeType:    MimeTypeJSON,
		})
	}
	for _, instance := range names {
		for _, name := range m.resourcesOrder {
			res := m.resources[name]
			resources = append(resources, Resource{
				URI:         resourceScheme + instance + "/" + name,
				Name:        instance + "/" + name,
				Description: fmt.Sprintf("%s (instance %s)", res.description, instance),
				MimeType:    MimeTypeJSON,
			})
		}
	}
	return resources
}

// resolve maps a URI onto an instance name and a registered resource.
func (m *resourceManager) resolve(uri string) (string, *registeredResource, error) {
	var instance, name string
	if values := instanceResourceTemplate.Match(uri); len(values) > 0 {
		instance = values.Get("instance").String()
		name = values.Get("resource").String()
	} else if values := defaultResourceTemplate.Match(uri); len(values) > 0 {
		name = values.Get("resource").String()
	} else {
		return "", nil, fmt.Errorf("%w: %s", errors.ErrResourceNotFound, uri)
	}

	m.mu.RLock()
	res, ok := m.resources[name]
	m.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", errors.ErrResourceNotFound, uri)
	}
	return instance, res, nil
}

// readResource reads one resource.
func (m *resourceManager) readResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	instance, res, err := m.resolve(uri)
	if err != nil {
		return nil, err
	}
	backend, err := m.instances.Get(instance)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrResourceNotFound, uri, err)
	}

	body, err := res.reader(ctx, backend)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	text, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}

	return &ReadResourceResult{
		Contents: []TextResourceContents{{
			URI:      uri,
			MimeType: MimeTypeJSON,
			Text:     string(text),
		}},
	}, nil
}

// handleListResources handles resources/list.
func (m *resourceManager) handleListResources(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	return &ListResourcesResult{Resources: m.listResources()}, nil
}

// handleReadResource handles resources/read.
func (m *resourceManager) handleReadResource(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	var params ReadResourceParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, errors.ErrInvalidParams.Error(), err.Error()), nil
		}
	}
	if params.URI == "" {
		return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, fmt.Sprintf("%v: uri", errors.ErrMissingParams), nil), nil
	}

	result, err := m.readResource(ctx, params.URI)
	if err != nil {
		return errorResponseFor(req.ID, err), nil
	}
	return result, nil
}
