package api

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// TokenStore holds the session bearer token handed over by a surface. It
// implements TokenProvider for the client and accepts updates from the
// WebSocket handshake. The zero value is an empty, expired store.
type TokenStore struct {
	mu    sync.RWMutex
	token string
	exp   time.Time
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// SetToken replaces the stored token. The expiry is read from the token's
// JWT claims when present; tokens without a readable exp claim never expire
// locally and the backend's 401 stays the authority.
func (s *TokenStore) SetToken(token string) {
	exp := jwtExpiry(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.exp = exp
}

// Token returns the current bearer token, empty when none was handed over.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Expired reports whether the store has no usable token.
func (s *TokenStore) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return true
	}
	if s.exp.IsZero() {
		return false
	}

	return time.Now().After(s.exp)
}

// jwtExpiry extracts the exp claim from a JWT, returning the zero time when
// the token is not a parseable JWT.
func jwtExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}

	claims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}
	}

	var payload struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(claims, &payload); err != nil || payload.Exp == 0 {
		return time.Time{}
	}

	return time.Unix(payload.Exp, 0)
}
