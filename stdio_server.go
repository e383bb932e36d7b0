// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxStdioLine bounds a single input line.
const maxStdioLine = 16 * 1024 * 1024

// StdioServer serves one peer over newline-delimited JSON-RPC. Requests
// are handled one at a time in arrival order.
type StdioServer struct {
	server      *Server
	logger      Logger
	contextFunc StdioContextFunc
}

// StdioServerOption defines an option function for configuring StdioServer.
type StdioServerOption func(*StdioServer)

// StdioContextFunc defines a function that can modify the context for stdio requests.
type StdioContextFunc func(ctx context.Context) context.Context

// WithStdioServerLogger sets a custom logger for the STDIO server.
func WithStdioServerLogger(logger Logger) StdioServerOption {
	return func(s *StdioServer) {
		s.logger = logger
	}
}

// WithStdioContext sets a context function for the STDIO server.
func WithStdioContext(fn StdioContextFunc) StdioServerOption {
	return func(s *StdioServer) {
		s.contextFunc = fn
	}
}

// NewStdioServer creates a stream transport around server.
func NewStdioServer(server *Server, options ...StdioServerOption) *StdioServer {
	s := &StdioServer{
		server: server,
		logger: server.Logger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Start serves the process standard streams until stdin is closed.
func (s *StdioServer) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext serves the process standard streams until stdin is
// closed or ctx is done.
func (s *StdioServer) StartWithContext(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve runs the read loop over in and out. End of input returns nil.
func (s *StdioServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if s.contextFunc != nil {
		ctx = s.contextFunc(ctx)
	}
	writer := bufio.NewWriter(out)

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLines(ctx, in, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err == io.EOF {
				s.logger.Debug("stdin closed, stopping stdio server")
				return nil
			}
			return fmt.Errorf("read stdin: %w", err)
		case line := <-lines:
			if err := s.processLine(ctx, line, writer); err != nil {
				return err
			}
		}
	}
}

// readLines feeds lines to the loop so a blocked read does not keep
// Serve from observing ctx.
func (s *StdioServer) readLines(ctx context.Context, in io.Reader, lines chan<- []byte, readErr chan<- error) {
	reader := bufio.NewReaderSize(in, 64*1024)
	for {
		line, err := readLine(reader)
		if len(line) > 0 {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

// readLine reads up to the next newline. A final unterminated line is
// returned together with io.EOF.
func readLine(reader *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, isPrefix, err := reader.ReadLine()
		buf.Write(chunk)
		if err != nil {
			return buf.Bytes(), err
		}
		if buf.Len() > maxStdioLine {
			return nil, fmt.Errorf("line exceeds %d bytes", maxStdioLine)
		}
		if !isPrefix {
			return buf.Bytes(), nil
		}
	}
}

// processLine handles one input line. Only write failures are returned;
// everything else is logged and the loop goes on.
func (s *StdioServer) processLine(ctx context.Context, line []byte, writer *bufio.Writer) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	req, err := parseJSONRPCRequest(line)
	if err != nil {
		s.logger.Errorf("Dropping invalid message: %v", err)
		return nil
	}

	response, notify := s.server.dispatch(ctx, req)
	if response != nil {
		if err := s.writeMessage(writer, response); err != nil {
			return err
		}
	}

	if notify {
		if err := s.writeMessage(writer, newToolsListChangedNotification()); err != nil {
			return err
		}
	}
	return nil
}

// writeMessage writes one message as a line and flushes it.
func (s *StdioServer) writeMessage(writer *bufio.Writer, message JSONRPCMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Errorf("Error marshaling message: %v", err)
		return nil
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("error writing newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("error flushing response: %w", err)
	}
	return nil
}
