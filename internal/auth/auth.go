// Package auth provides the token-to-identity lookup the collaboration
// core authenticates against. Tokens are opaque uuid strings issued at
// login and held in memory only; a restart invalidates every session.
package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownToken is returned when a token does not resolve to an identity
var ErrUnknownToken = errors.New("invalid token")

// Registry maps issued tokens to identities. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> identity
}

// NewRegistry creates an empty token registry
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]string)}
}

// Login issues a fresh token for the given username and returns it.
// Multiple logins by the same username yield independent tokens that all
// resolve to the same identity.
func (r *Registry) Login(username string) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.tokens[token] = username
	r.mu.Unlock()
	return token
}

// Resolve returns the identity a token was issued for, or
// ErrUnknownToken if the token was never issued (or the process
// restarted since).
func (r *Registry) Resolve(token string) (string, error) {
	r.mu.RLock()
	identity, ok := r.tokens[token]
	r.mu.RUnlock()
	if !ok {
		return "", ErrUnknownToken
	}
	return identity, nil
}
