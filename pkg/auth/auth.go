// Package auth talks to the Supabase auth API (GoTrue): password sign-in,
// refresh-token grants and sign-out. It also parses access-token claims and
// carries the caller's access token through a context.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/httputil"
	"github.com/matzehuels/dbdev/pkg/session"
)

// Client is a GoTrue client.
type Client struct {
	http    *httputil.Client
	baseURL string
	now     func() time.Time
}

// NewClient returns a client for the project at supabaseURL. httpClient may
// be nil.
func NewClient(supabaseURL, anonKey string, httpClient *httputil.Client) (*Client, error) {
	if err := errors.ValidateURL(supabaseURL); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = httputil.NewClient(map[string]string{"apikey": anonKey})
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(supabaseURL, "/") + "/auth/v1",
		now:     time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			Handle string `json:"handle"`
		} `json:"user_metadata"`
	} `json:"user"`
}

func (r tokenResponse) split(now time.Time) (session.Tokens, *session.User) {
	return session.Tokens{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			ExpiresAt:    now.Add(time.Duration(r.ExpiresIn) * time.Second),
		}, &session.User{
			ID:     r.User.ID,
			Email:  r.User.Email,
			Handle: r.User.UserMetadata.Handle,
		}
}

// SignInWithPassword exchanges credentials for a token pair.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (session.Tokens, *session.User, error) {
	if err := errors.ValidateRequired("email", email); err != nil {
		return session.Tokens{}, nil, err
	}
	if err := errors.ValidateRequired("password", password); err != nil {
		return session.Tokens{}, nil, err
	}
	return c.grant(ctx, "password", map[string]string{"email": email, "password": password})
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.Tokens, *session.User, error) {
	if refreshToken == "" {
		return session.Tokens{}, nil, errors.New(errors.ErrCodeUnauthorized, "no refresh token")
	}
	return c.grant(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) grant(ctx context.Context, grantType string, body map[string]string) (session.Tokens, *session.User, error) {
	var resp tokenResponse
	_, err := c.http.Do(ctx, httputil.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/token?grant_type=" + url.QueryEscape(grantType),
		Body:   body,
	}, &resp)
	if err != nil {
		return session.Tokens{}, nil, fmt.Errorf("auth %s: %w", grantType, err)
	}
	if resp.AccessToken == "" {
		return session.Tokens{}, nil, errors.New(errors.ErrCodeUnauthorized, "auth %s: empty access token", grantType)
	}
	tokens, user := resp.split(c.now())
	return tokens, user, nil
}

// SignOut revokes the refresh tokens of the access token's session.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.http.Do(ctx, httputil.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/logout",
		Headers: map[string]string{"Authorization": "Bearer " + accessToken},
	}, nil)
	if err != nil {
		return fmt.Errorf("auth logout: %w", err)
	}
	return nil
}
