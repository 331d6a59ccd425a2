package auth

import (
	"context"
	"fmt"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/session"
)

// Refresher renews the caller's session.
type Refresher interface {
	RefreshSession(ctx context.Context) error
}

// SessionRefresher refreshes one stored session.
type SessionRefresher struct {
	client    *Client
	store     session.Store
	sessionID string
}

var _ Refresher = (*SessionRefresher)(nil)

// NewSessionRefresher returns a refresher for the session with sessionID in
// store.
func NewSessionRefresher(client *Client, store session.Store, sessionID string) *SessionRefresher {
	return &SessionRefresher{client: client, store: store, sessionID: sessionID}
}

// RefreshSession exchanges the stored refresh token for a new token pair,
// saves it and updates the access token carried by ctx.
func (r *SessionRefresher) RefreshSession(ctx context.Context) error {
	sess, err := r.store.Get(ctx, r.sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return errors.New(errors.ErrCodeUnauthorized, "not signed in")
	}

	tokens, user, err := r.client.Refresh(ctx, sess.Tokens.RefreshToken)
	if err != nil {
		return err
	}
	sess.Tokens = tokens
	if user != nil && user.ID != "" {
		if user.Handle == "" && sess.User != nil {
			user.Handle = sess.User.Handle
		}
		sess.User = user
	}
	if err := r.store.Set(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	setAccessToken(ctx, tokens.AccessToken)
	return nil
}
