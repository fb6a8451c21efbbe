// Package auth implements the static credential gate and bearer-token
// session tracking for the web API.
package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Gate checks credentials against a fixed table and issues opaque bearer
// tokens for authenticated sessions.
type Gate struct {
	creds map[string]string

	mu     sync.RWMutex
	tokens map[string]tokenInfo
}

type tokenInfo struct {
	username string
	issuedAt time.Time
}

func NewGate(creds map[string]string) *Gate {
	copied := make(map[string]string, len(creds))
	for u, p := range creds {
		copied[u] = p
	}
	return &Gate{
		creds:  copied,
		tokens: make(map[string]tokenInfo),
	}
}

// Login verifies the credentials and issues a token on success.
func (g *Gate) Login(username, password string) (string, bool) {
	if username == "" || password == "" {
		return "", false
	}
	want, ok := g.creds[username]
	if !ok || want != password {
		return "", false
	}

	token := uuid.NewString()
	g.mu.Lock()
	g.tokens[token] = tokenInfo{username: username, issuedAt: time.Now().UTC()}
	g.mu.Unlock()
	return token, true
}

// Authenticate resolves a token to its username.
func (g *Gate) Authenticate(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	g.mu.RLock()
	info, ok := g.tokens[token]
	g.mu.RUnlock()
	return info.username, ok
}

// Logout invalidates the token. Unknown tokens are a no-op.
func (g *Gate) Logout(token string) {
	g.mu.Lock()
	delete(g.tokens, token)
	g.mu.Unlock()
}
