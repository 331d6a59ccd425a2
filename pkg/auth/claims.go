package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matzehuels/dbdev/pkg/errors"
)

// Claims are the access-token claims the website reads.
type Claims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	Role         string `json:"role"`
	UserMetadata struct {
		Handle string `json:"handle"`
	} `json:"user_metadata"`
}

// Handle returns the publisher handle of the token's user.
func (c *Claims) Handle() string { return c.UserMetadata.Handle }

// ParseClaims verifies an HS256 access token against secret and returns its
// claims. An expired or badly signed token is UNAUTHORIZED.
func ParseClaims(token string, secret []byte) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnauthorized, err, "invalid access token")
	}
	return &claims, nil
}

// ParseUnverified decodes the claims without checking the signature. The
// CLI uses it to show who is signed in.
func ParseUnverified(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	return &claims, nil
}
