// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

// Command qbit-mcp exposes qBittorrent instances as an MCP server over
// stdio or SSE.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// version is set at build time.
var version = "0.1.0"

func newFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file.",
			Sources: cli.EnvVars("QBIT_MCP_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "transport",
			Aliases: []string{"t"},
			Usage:   "Transport to serve: stdio or sse.",
			Sources: cli.EnvVars("QBIT_MCP_TRANSPORT"),
		},
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "Listen address of the SSE transport.",
			Sources: cli.EnvVars("QBIT_MCP_ADDR"),
		},
		&cli.BoolFlag{
			Name:    "lazy",
			Usage:   "Start with only list_torrents and show_all_tools visible.",
			Sources: cli.EnvVars("QBIT_MCP_LAZY"),
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token required on the SSE endpoint.",
			Sources: cli.EnvVars("QBIT_MCP_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "url",
			Usage:   "qBittorrent WebUI URL. Replaces the configured instances.",
			Sources: cli.EnvVars("QBITTORRENT_URL"),
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "qBittorrent WebUI username.",
			Sources: cli.EnvVars("QBITTORRENT_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "qBittorrent WebUI password.",
			Sources: cli.EnvVars("QBITTORRENT_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "Log level: debug, info, warn or error.",
			Sources: cli.EnvVars("QBIT_MCP_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format: console or json.",
			Sources: cli.EnvVars("QBIT_MCP_LOG_FORMAT"),
		},
	}
}

// newApp builds the command tree around action.
func newApp(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:    "qbit-mcp",
		Usage:   "MCP server for qBittorrent",
		Version: version,
		Flags:   newFlags(),
		Action:  action,
	}
}

func main() {
	app := newApp(run)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
