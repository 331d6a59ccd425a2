package auth

import (
	"context"
	"sync"
)

// Credentials hold the caller's access token for the duration of a
// request. A refresh replaces the token in place, so later calls in the
// same request use the new one.
type Credentials struct {
	mu    sync.RWMutex
	token string
}

type credentialsKey struct{}

// WithAccessToken returns a context carrying credentials for token.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialsKey{}, &Credentials{token: token})
}

// AccessToken returns the caller's access token, or "".
func AccessToken(ctx context.Context) string {
	c, ok := ctx.Value(credentialsKey{}).(*Credentials)
	if !ok {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func setAccessToken(ctx context.Context, token string) {
	if c, ok := ctx.Value(credentialsKey{}).(*Credentials); ok {
		c.mu.Lock()
		c.token = token
		c.mu.Unlock()
	}
}
