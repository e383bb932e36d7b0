// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

// Package auth gates the HTTP transport behind a single static bearer token.
package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"trpc.group/trpc-go/trpc-qbit-mcp/internal/errors"
)

// TokenQueryParameter is the query fallback for clients that cannot set
// headers on an event stream.
const TokenQueryParameter = "token"

// StaticToken verifies requests against one configured token. An empty
// token disables the check.
type StaticToken struct {
	token string
}

// NewStaticToken creates a verifier for token.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: strings.TrimSpace(token)}
}

// Enabled reports whether a token is configured.
func (s *StaticToken) Enabled() bool {
	return s != nil && s.token != ""
}

// ExtractToken returns the presented token from the Authorization header,
// falling back to the token query parameter.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get(TokenQueryParameter)
}

// Verify checks the request. It returns an error wrapping
// errors.ErrUnauthorized when the token is missing or wrong.
func (s *StaticToken) Verify(r *http.Request) error {
	if !s.Enabled() {
		return nil
	}
	presented := ExtractToken(r)
	if presented == "" {
		return fmt.Errorf("%w: missing bearer token", errors.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
		return fmt.Errorf("%w: invalid bearer token", errors.ErrUnauthorized)
	}
	return nil
}

// WriteChallenge writes a 401 response with a Bearer challenge header.
func WriteChallenge(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="mcp", error="invalid_token", error_description="%s"`, desc))
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}

// Require returns an HTTP middleware rejecting requests that fail Verify.
func (s *StaticToken) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.Verify(r); err != nil {
				WriteChallenge(w, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
