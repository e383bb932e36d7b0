// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

// Package qbit is a client for the qBittorrent WebUI API v2.
//
// A Client performs exactly one logical HTTP call per operation. The only
// state it keeps is the SID cookie obtained at login, so a single Client is
// safe to share between concurrent tool handlers.
package qbit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/retry"
)

const (
	apiPrefix      = "/api/v2"
	defaultTimeout = 10 * time.Second
	loginOK        = "Ok."
)

// Config configures a Client.
type Config struct {
	// URL is the WebUI base URL, e.g. http://localhost:8080.
	URL string
	// Username and Password are optional; an empty username skips login,
	// which suits instances with "bypass authentication for localhost".
	Username string
	Password string
	// Timeout bounds every single HTTP round trip.
	Timeout time.Duration
	// Retry controls retries of transient failures. Nil disables retries.
	Retry *retry.Config
}

// APIError is returned for every non-2xx answer of the WebUI.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("qbittorrent %s: status %d: %s", e.Endpoint, e.StatusCode, body)
}

// Client talks to one qBittorrent instance.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *http.Client
	retry    *retry.Config

	loginMu  sync.Mutex
	loggedIn atomic.Bool
}

// New creates a client for the instance described by cfg.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qbittorrent url is required")
	}
	baseURL, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid qbittorrent url %q: %w", cfg.URL, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid qbittorrent url %q: scheme must be http or https", cfg.URL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var retryConfig *retry.Config
	if cfg.Retry != nil {
		validated := cfg.Retry.Validate()
		retryConfig = &validated
	}

	return &Client{
		baseURL:  baseURL,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Jar: jar, Timeout: timeout},
		retry:    retryConfig,
	}, nil
}

// BaseURL returns the WebUI address this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login authenticates and stores the SID cookie.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	body, err := c.roundTrip(ctx, "/auth/login", func() (*http.Request, error) {
		return c.newFormRequest(ctx, "/auth/login", form)
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if strings.TrimSpace(string(body)) != loginOK {
		return fmt.Errorf("login: rejected credentials for user %q", c.username)
	}
	c.loggedIn.Store(true)
	return nil
}

// ensureLogin logs in once, unless the client runs without credentials.
func (c *Client) ensureLogin(ctx context.Context) error {
	if c.username == "" || c.loggedIn.Load() {
		return nil
	}
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	if c.loggedIn.Load() {
		return nil
	}
	return c.loginLocked(ctx)
}

// get issues a GET against endpoint with the given query.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return c.call(ctx, endpoint, func() (*http.Request, error) {
		u := c.endpointURL(endpoint)
		if len(query) > 0 {
			u.RawQuery = query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		c.decorate(req)
		return req, nil
	})
}

// post issues a form-encoded POST against endpoint.
func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	return c.call(ctx, endpoint, func() (*http.Request, error) {
		return c.newFormRequest(ctx, endpoint, form)
	})
}

// call performs an authenticated request, logging in again once when the
// session cookie has expired.
func (c *Client) call(ctx context.Context, endpoint string, build func() (*http.Request, error)) ([]byte, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	body, err := c.roundTrip(ctx, endpoint, build)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden && c.username != "" {
		c.loggedIn.Store(false)
		if loginErr := c.Login(ctx); loginErr != nil {
			return nil, loginErr
		}
		return c.roundTrip(ctx, endpoint, build)
	}
	return body, err
}

// roundTrip sends the request built by build, retrying transient failures.
func (c *Client) roundTrip(ctx context.Context, endpoint string, build func() (*http.Request, error)) ([]byte, error) {
	var body []byte
	err := retry.Execute(ctx, c.retry, func() error {
		req, err := build()
		if err != nil {
			return fmt.Errorf("build request %s: %w", endpoint, err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s response: %w", endpoint, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
		}
		body = data
		return nil
	})
	return body, err
}

func (c *Client) newFormRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint).String(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.decorate(req)
	return req, nil
}

// decorate adds the headers the WebUI CSRF protection expects.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Referer", c.baseURL.String())
}

func (c *Client) endpointURL(endpoint string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + apiPrefix + endpoint
	return &u
}

// joinHashes renders a hash list the way the WebUI expects it. The literal
// "all" is passed through by the WebUI as every torrent.
func joinHashes(hashes []string) string {
	return strings.Join(hashes, "|")
}
