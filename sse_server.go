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
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/auth"
	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
)

const (
	defaultSSEEndpoint       = "/sse"
	defaultMessageEndpoint   = "/message"
	defaultKeepAliveInterval = 30 * time.Second

	// sessionIDParameter carries the session id on posted messages.
	sessionIDParameter = "session_id"
	// maxMessageBytes bounds a posted request body.
	maxMessageBytes = 4 << 20
)

// SSEServer serves the push-channel transport: clients hold an event
// stream open on the SSE endpoint and post requests to the message
// endpoint; responses arrive on the stream.
type SSEServer struct {
	server            *Server
	logger            Logger
	clock             clockwork.Clock
	basePath          string                                                     // Base path for the server (e.g., "/mcp").
	sseEndpoint       string                                                     // Path for the SSE endpoint.
	messageEndpoint   string                                                     // Path for the message endpoint.
	keepAlive         bool                                                       // Whether to send keep-alive comments.
	keepAliveInterval time.Duration                                              // Keep-alive interval.
	verifier          *auth.StaticToken                                          // Optional bearer token gate.
	metrics           MetricsRecorder                                            // Optional session metrics.
	contextFunc       func(ctx context.Context, r *http.Request) context.Context // HTTP context function.
	httpServer        *http.Server

	sessions *sessionRegistry
	inflight sync.WaitGroup
	router   chi.Router
}

// SSEOption configures an SSEServer.
type SSEOption func(*SSEServer)

// WithBasePath mounts both endpoints under basePath.
func WithBasePath(basePath string) SSEOption {
	return func(s *SSEServer) {
		s.basePath = normalizePath(basePath)
		if s.basePath == "/" {
			s.basePath = ""
		}
	}
}

// WithSSEEndpoint sets the event stream path.
func WithSSEEndpoint(endpoint string) SSEOption {
	return func(s *SSEServer) {
		s.sseEndpoint = normalizePath(endpoint)
	}
}

// WithMessageEndpoint sets the post path.
func WithMessageEndpoint(endpoint string) SSEOption {
	return func(s *SSEServer) {
		s.messageEndpoint = normalizePath(endpoint)
	}
}

// WithHTTPServer sets the http.Server used by Start and Shutdown.
func WithHTTPServer(srv *http.Server) SSEOption {
	return func(s *SSEServer) {
		s.httpServer = srv
	}
}

// WithKeepAlive enables or disables keep-alive comments.
func WithKeepAlive(keepAlive bool) SSEOption {
	return func(s *SSEServer) {
		s.keepAlive = keepAlive
	}
}

// WithKeepAliveInterval sets the keep-alive interval and enables keep-alive.
func WithKeepAliveInterval(interval time.Duration) SSEOption {
	return func(s *SSEServer) {
		s.keepAlive = true
		s.keepAliveInterval = interval
	}
}

// WithAuthToken requires a bearer token on the SSE endpoint. An empty
// token disables the check.
func WithAuthToken(token string) SSEOption {
	return func(s *SSEServer) {
		s.verifier = auth.NewStaticToken(token)
	}
}

// WithSSEMetricsRecorder reports session opens and closes to recorder.
func WithSSEMetricsRecorder(recorder MetricsRecorder) SSEOption {
	return func(s *SSEServer) {
		s.metrics = recorder
	}
}

// WithSSEContextFunc sets a function deriving the request context.
func WithSSEContextFunc(fn func(ctx context.Context, r *http.Request) context.Context) SSEOption {
	return func(s *SSEServer) {
		s.contextFunc = fn
	}
}

// WithSSEServerLogger sets the transport logger.
func WithSSEServerLogger(logger Logger) SSEOption {
	return func(s *SSEServer) {
		s.logger = logger
	}
}

// WithSSEClock replaces the clock driving keep-alive ticks.
func WithSSEClock(clock clockwork.Clock) SSEOption {
	return func(s *SSEServer) {
		s.clock = clock
	}
}

// NewSSEServer creates a push-channel transport around server.
func NewSSEServer(server *Server, opts ...SSEOption) *SSEServer {
	s := &SSEServer{
		server:            server,
		logger:            server.Logger(),
		clock:             clockwork.NewRealClock(),
		sseEndpoint:       defaultSSEEndpoint,
		messageEndpoint:   defaultMessageEndpoint,
		keepAlive:         true,
		keepAliveInterval: defaultKeepAliveInterval,
		verifier:          auth.NewStaticToken(""),
		sessions:          newSessionRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.keepAliveInterval <= 0 {
		s.keepAliveInterval = defaultKeepAliveInterval
	}
	s.router = s.routes()
	return s
}

func (s *SSEServer) routes() chi.Router {
	mount := func(r chi.Router) {
		r.With(s.verifier.Require()).Get(s.sseEndpoint, s.handleSSE)
		r.Post(s.messageEndpoint, s.handleMessage)
	}

	r := chi.NewRouter()
	if s.basePath == "" {
		mount(r)
	} else {
		r.Route(s.basePath, mount)
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *SSEServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr and serves until Shutdown.
func (s *SSEServer) Start(addr string) error {
	if s.httpServer == nil {
		s.httpServer = &http.Server{Addr: addr}
	}
	if s.httpServer.Addr == "" {
		s.httpServer.Addr = addr
	}
	if s.httpServer.Handler == nil {
		s.httpServer.Handler = s
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown closes every session, then stops the HTTP server if one was
// started.
func (s *SSEServer) Shutdown(ctx context.Context) error {
	if n := s.sessions.closeAll(); n > 0 {
		s.logger.Infof("Closed %d SSE session(s)", n)
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached with requests still in flight")
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// SessionCount returns the number of connected sessions.
func (s *SSEServer) SessionCount() int {
	return s.sessions.len()
}

// messageEndpointFor returns the relative post URL for a session.
func (s *SSEServer) messageEndpointFor(sessionID string) string {
	return s.basePath + s.messageEndpoint + "?" + sessionIDParameter + "=" + sessionID
}

// handleSSE opens an event stream and keeps it until the client leaves
// or the session is closed.
func (s *SSEServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Errorf("Streaming not supported by response writer")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if s.contextFunc != nil {
		ctx = s.contextFunc(ctx, r)
	}
	session := newSSESession(ctx, s.clock.Now())
	s.sessions.add(session)
	s.recordSessionDelta(1)
	s.logger.Debugf("SSE session %s connected", session.id)

	defer func() {
		s.sessions.remove(session.id)
		session.close()
		s.recordSessionDelta(-1)
		s.logger.Debugf("SSE session %s disconnected after %v", session.id, s.clock.Since(session.createdAt))
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if !writeEvent(w, flusher, formatSSEEvent("endpoint", s.messageEndpointFor(session.id))) {
		return
	}

	var keepAlive <-chan time.Time
	if s.keepAlive {
		ticker := s.clock.NewTicker(s.keepAliveInterval)
		defer ticker.Stop()
		keepAlive = ticker.Chan()
	}

	for {
		select {
		case event := <-session.eventQueue:
			if !writeEvent(w, flusher, event) {
				return
			}
		case <-keepAlive:
			if !writeEvent(w, flusher, ": keepalive\n\n") {
				return
			}
		case <-session.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleMessage accepts one posted request for a session and processes it
// in the background.
func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(sessionIDParameter)
	if sessionID == "" {
		http.Error(w, errors.ErrMissingSessionID.Error(), http.StatusBadRequest)
		return
	}
	session, ok := s.sessions.get(sessionID)
	if !ok {
		s.logger.Debugf("Message for unknown session %s", sessionID)
		http.Error(w, errors.ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "Could not read body", http.StatusBadRequest)
		return
	}
	req, err := parseJSONRPCRequest(body)
	if err != nil {
		s.logger.Errorf("Rejecting message for session %s: %v", sessionID, err)
		http.Error(w, "Could not parse message", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Accepted"))

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.processRequest(session, req)
	}()
}

// processRequest runs one request under the session context and pushes
// the outcome onto the session stream.
func (s *SSEServer) processRequest(session *sseSession, req *JSONRPCRequest) {
	response, notify := s.server.dispatch(session.ctx, req)
	if response != nil {
		if err := s.send(session, response); err != nil {
			s.logger.Debugf("Dropping response to %s: %v", req.Method, err)
		}
	}

	if notify {
		s.broadcast(newToolsListChangedNotification())
	}
}

// send pushes message to one session.
func (s *SSEServer) send(session *sseSession, message JSONRPCMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}
	if !session.enqueue(formatSSEEvent("message", string(data))) {
		return fmt.Errorf("session %s is closed", session.id)
	}
	return nil
}

// broadcast pushes message to every connected session.
func (s *SSEServer) broadcast(message JSONRPCMessage) {
	for _, session := range s.sessions.snapshot() {
		if err := s.send(session, message); err != nil {
			s.logger.Debugf("Broadcast skipped: %v", err)
		}
	}
}

func (s *SSEServer) recordSessionDelta(delta int64) {
	if s.metrics != nil {
		s.metrics.RecordSessionDelta(context.Background(), delta)
	}
}

// formatSSEEvent renders one server-sent event.
func formatSSEEvent(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

// writeEvent writes and flushes a pre-formatted event.
func writeEvent(w io.Writer, flusher http.Flusher, event string) bool {
	if _, err := io.WriteString(w, event); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func normalizePath(path string) string {
	path = strings.TrimSuffix(strings.TrimSpace(path), "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
