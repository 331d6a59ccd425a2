// Package session provides session management for signed-in publishers.
//
// Sessions hold the auth provider's token pair and the signed-in user, with
// automatic expiration. Backends:
//   - [MemoryStore]: in-memory storage for development and tests
//   - [RedisStore]: Redis-backed storage for multi-instance deployments
//   - [FileStore]: JSON files for the CLI
//
// State tokens protect form submissions against cross-site request
// forgery. They are short-lived and single-use ([StateStore]).
//
// # Usage
//
//	sess, err := session.New(tokens, user, session.DefaultTTL)
//	if err != nil {
//	    return err
//	}
//	store.Set(ctx, sess)
//
//	sess, err := store.Get(ctx, sessionID)
//	if sess == nil {
//	    // Not signed in or expired
//	}
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a state token is invalid or already used.
	ErrInvalidState = errors.New("invalid or expired state token")
)

// User is the signed-in account.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Handle string `json:"handle"`
}

// Tokens is the auth provider's token pair.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"token_expires_at"`
}

// Session stores user session data.
type Session struct {
	ID        string    `json:"id"`
	Tokens    Tokens    `json:"tokens"`
	User      *User     `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Handle returns the handle of the signed-in user, or "".
func (s *Session) Handle() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.Handle
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes expired sessions (may be a no-op for Redis).
	Cleanup(ctx context.Context) error

	Close() error
}

// StateStore manages single-use state tokens.
type StateStore interface {
	// Generate creates a new state token and stores it with the given TTL.
	Generate(ctx context.Context, ttl time.Duration) (string, error)

	// Validate checks if a state token is valid and removes it.
	Validate(ctx context.Context, state string) (bool, error)

	// Cleanup removes expired state tokens (may be a no-op for Redis).
	Cleanup(ctx context.Context) error
}

// Default durations.
const (
	// DefaultTTL is the default session duration.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultStateTTL is the default state token duration.
	DefaultStateTTL = 30 * time.Minute
)

// GenerateID creates a cryptographically secure random session ID.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateState creates a cryptographically secure random state token.
func GenerateState() (string, error) {
	return GenerateID()
}

// New creates a new session with the given tokens and user.
func New(tokens Tokens, user *User, ttl time.Duration) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		ID:        id,
		Tokens:    tokens,
		User:      user,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}
