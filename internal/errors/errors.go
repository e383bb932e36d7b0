// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

// Package errors holds the sentinel errors shared by the router, the tool
// handlers and the transports. Callers wrap them with fmt.Errorf("%w") and
// the router maps them onto JSON-RPC error codes with errors.Is.
package errors

import (
	"errors"
)

// Parameter errors, reported as InvalidParams.
var (
	ErrInvalidParams = errors.New("invalid params")
	ErrMissingParams = errors.New("missing required params")
)

// Lookup errors, reported as MethodNotFound.
var (
	ErrMethodNotFound   = errors.New("method not found")
	ErrToolNotFound     = errors.New("tool not found")
	ErrResourceNotFound = errors.New("resource not found")
)

// Backend routing errors.
var (
	ErrInstanceNotFound = errors.New("backend instance not found")
	ErrTorrentNotFound  = errors.New("torrent not found")
)

// Transport errors for the push-channel transport.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrSessionNotFound  = errors.New("session not found")
	ErrMissingSessionID = errors.New("missing session_id parameter")
)

// IsParamsError reports whether err belongs to the invalid-params family.
func IsParamsError(err error) bool {
	return errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrMissingParams) ||
		errors.Is(err, ErrInstanceNotFound)
}

// IsNotFoundError reports whether err belongs to the lookup-failure family.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrMethodNotFound) ||
		errors.Is(err, ErrToolNotFound) ||
		errors.Is(err, ErrResourceNotFound)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
