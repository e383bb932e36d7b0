// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/config"
)

// parseConfig runs the command line through loadConfig only.
func parseConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var (
		cfg     *config.Config
		loadErr error
	)
	app := newApp(func(ctx context.Context, cmd *cli.Command) error {
		cfg, loadErr = loadConfig(cmd)
		return nil
	})
	require.NoError(t, app.Run(context.Background(), append([]string{"qbit-mcp"}, args...)))
	return cfg, loadErr
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  transport: stdio
instances:
  - name: home
    url: http://home:8080
  - name: nas
    url: http://nas:8080
log:
  level: debug
`), 0o600))

	cfg, err := parseConfig(t, "--config", path, "--transport", "sse", "--addr", "127.0.0.1:9000", "--lazy", "--token", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, config.TransportSSE, cfg.Server.Transport)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.LazyMode)
	assert.Equal(t, "s3cret", cfg.Server.AuthToken)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Instances, 2)
	assert.Equal(t, "nas", cfg.Instances[1].Name)
}

func TestLoadConfig_URLReplacesInstances(t *testing.T) {
	t.Setenv("QBITTORRENT_USERNAME", "admin")
	t.Setenv("QBITTORRENT_PASSWORD", "adminadmin")

	cfg, err := parseConfig(t, "--url", "http://localhost:8080")
	require.NoError(t, err)
	require.Len(t, cfg.Instances, 1)
	assert.Equal(t, config.InstanceConfig{
		Name:     "default",
		URL:      "http://localhost:8080",
		Username: "admin",
		Password: "adminadmin",
	}, cfg.Instances[0])
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := parseConfig(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = parseConfig(t, "--url", "http://localhost:8080", "--transport", "carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestBuildInstances(t *testing.T) {
	cfg := config.Default()
	cfg.Instances = []config.InstanceConfig{
		{Name: "home", URL: "http://home:8080"},
		{Name: "nas", URL: "http://nas:8080"},
	}

	instances, err := buildInstances(cfg)
	require.NoError(t, err)
	assert.Equal(t, "home", instances.Default())
	assert.Equal(t, []string{"home", "nas"}, instances.Names())

	cfg.Instances = append(cfg.Instances, config.InstanceConfig{Name: "nas", URL: "http://other:8080"})
	_, err = buildInstances(cfg)
	assert.Error(t, err)
}
