// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

// Package config loads the server configuration from YAML.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/retry"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Instances []InstanceConfig `yaml:"instances"`
	Retry     retry.Config     `yaml:"retry"`
	Log       LogConfig        `yaml:"log"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig configures the MCP side.
type ServerConfig struct {
	Name              string        `yaml:"name"`
	Transport         string        `yaml:"transport"`
	Addr              string        `yaml:"addr"`
	BasePath          string        `yaml:"base_path"`
	SSEEndpoint       string        `yaml:"sse_endpoint"`
	MessageEndpoint   string        `yaml:"message_endpoint"`
	AuthToken         string        `yaml:"auth_token"`
	LazyMode          bool          `yaml:"lazy_mode"`
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
}

// InstanceConfig describes one qBittorrent WebUI.
type InstanceConfig struct {
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	MetricsExporter string        `yaml:"metrics_exporter"`
	TracesExporter  string        `yaml:"traces_exporter"`
	OTLPEndpoint    string        `yaml:"otlp_endpoint"`
	OTLPInsecure    bool          `yaml:"otlp_insecure"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:              "qbittorrent-mcp",
			Transport:         TransportStdio,
			Addr:              ":8000",
			SSEEndpoint:       "/sse",
			MessageEndpoint:   "/message",
			KeepAliveInterval: 30 * time.Second,
		},
		Retry: retry.DefaultConfig,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			MetricsExporter: ExporterNone,
			TracesExporter:  ExporterNone,
			MetricsInterval: time.Minute,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills values a file may leave empty.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Server.Name == "" {
		c.Server.Name = def.Server.Name
	}
	if c.Server.Transport == "" {
		c.Server.Transport = def.Server.Transport
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.SSEEndpoint == "" {
		c.Server.SSEEndpoint = def.Server.SSEEndpoint
	}
	if c.Server.MessageEndpoint == "" {
		c.Server.MessageEndpoint = def.Server.MessageEndpoint
	}
	if c.Server.KeepAliveInterval == 0 {
		c.Server.KeepAliveInterval = def.Server.KeepAliveInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Telemetry.MetricsExporter == "" {
		c.Telemetry.MetricsExporter = ExporterNone
	}
	if c.Telemetry.TracesExporter == "" {
		c.Telemetry.TracesExporter = ExporterNone
	}
	if c.Telemetry.MetricsInterval == 0 {
		c.Telemetry.MetricsInterval = def.Telemetry.MetricsInterval
	}
	for i := range c.Instances {
		if c.Instances[i].Name == "" {
			c.Instances[i].Name = fmt.Sprintf("instance%d", i+1)
			if i == 0 {
				c.Instances[i].Name = "default"
			}
		}
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Server.Transport {
	case TransportStdio, TransportSSE:
	default:
		result = multierror.Append(result, fmt.Errorf("server.transport: unknown transport %q", c.Server.Transport))
	}
	if c.Server.Transport == TransportSSE && c.Server.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("server.addr: required for the sse transport"))
	}
	if c.Server.KeepAliveInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("server.keep_alive_interval: must not be negative"))
	}

	if len(c.Instances) == 0 {
		result = multierror.Append(result, fmt.Errorf("instances: at least one qBittorrent instance is required"))
	}
	seen := make(map[string]bool, len(c.Instances))
	for i, inst := range c.Instances {
		field := fmt.Sprintf("instances[%d]", i)
		if inst.Name == "" {
			result = multierror.Append(result, fmt.Errorf("%s.name: required", field))
		} else if seen[inst.Name] {
			result = multierror.Append(result, fmt.Errorf("%s.name: duplicate instance %q", field, inst.Name))
		}
		seen[inst.Name] = true

		if u, err := url.Parse(inst.URL); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s.url: invalid URL %q", field, inst.URL))
		}
		if inst.Timeout < 0 {
			result = multierror.Append(result, fmt.Errorf("%s.timeout: must not be negative", field))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	for name, exporter := range map[string]string{
		"telemetry.metrics_exporter": c.Telemetry.MetricsExporter,
		"telemetry.traces_exporter":  c.Telemetry.TracesExporter,
	} {
		switch exporter {
		case ExporterNone, ExporterStdout, ExporterOTLP:
		default:
			result = multierror.Append(result, fmt.Errorf("%s: unknown exporter %q", name, exporter))
		}
	}

	return result.ErrorOrNil()
}
