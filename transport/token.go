// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Token is a short-lived credential admitting one connection to one
// room.
type Token struct {
	// Value is the bearer credential presented to the forwarding unit.
	Value string `json:"token"`

	// URL is the forwarding unit endpoint the token is valid for.
	URL string `json:"url"`

	// ExpiresAt bounds the token's validity.
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenService mints room access tokens. The live transport calls it
// once per connection attempt; a reconnect mints a fresh token.
// Failures are classified as [ErrTokenFailure].
type TokenService interface {
	MintToken(ctx context.Context, room ref.RoomID, user ref.UserID) (Token, error)
}

// HTTPTokenService mints tokens from the coordination service's token
// endpoint.
type HTTPTokenService struct {
	// Endpoint is the token minting URL.
	Endpoint string

	// Client is the HTTP client to use. Nil means
	// http.DefaultClient.
	Client *http.Client
}

var _ TokenService = (*HTTPTokenService)(nil)

// MintToken POSTs a mint request and decodes the token response. Any
// failure wraps ErrTokenFailure so the session layer classifies it
// without inspecting HTTP details.
func (s *HTTPTokenService) MintToken(ctx context.Context, room ref.RoomID, user ref.UserID) (Token, error) {
	requestBody, err := json.Marshal(struct {
		Room ref.RoomID `json:"room"`
		User ref.UserID `json:"user"`
	}{Room: room, User: user})
	if err != nil {
		return Token{}, fmt.Errorf("%w: encoding mint request: %v", ErrTokenFailure, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return Token{}, fmt.Errorf("%w: building mint request: %v", ErrTokenFailure, err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrTokenFailure, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return Token{}, fmt.Errorf("%w: endpoint returned %s: %s",
			ErrTokenFailure, response.Status, bytes.TrimSpace(body))
	}

	var token Token
	if err := json.NewDecoder(response.Body).Decode(&token); err != nil {
		return Token{}, fmt.Errorf("%w: decoding mint response: %v", ErrTokenFailure, err)
	}
	if token.Value == "" {
		return Token{}, fmt.Errorf("%w: endpoint returned empty token", ErrTokenFailure)
	}
	return token, nil
}

// StaticTokenService returns a fixed token for every mint. For tests
// and development against an unauthenticated forwarding unit.
type StaticTokenService struct {
	Token Token

	// Err, when set, is returned instead of the token.
	Err error
}

var _ TokenService = (*StaticTokenService)(nil)

func (s *StaticTokenService) MintToken(ctx context.Context, room ref.RoomID, user ref.UserID) (Token, error) {
	if s.Err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrTokenFailure, s.Err)
	}
	return s.Token, nil
}
