package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/httputil"
)

// DefaultBucket is the avatar bucket of a dbdev project.
const DefaultBucket = "avatars"

// TokenFunc returns the bearer token of the current caller, or "" for the
// anon key.
type TokenFunc func(ctx context.Context) string

// Supabase uploads to a Supabase Storage bucket.
type Supabase struct {
	client  *httputil.Client
	baseURL string
	bucket  string
	anonKey string
	token   TokenFunc
}

var _ Uploader = (*Supabase)(nil)

// NewSupabase returns an uploader for bucket in the project at supabaseURL.
// client may be nil.
func NewSupabase(supabaseURL, anonKey, bucket string, client *httputil.Client, token TokenFunc) (*Supabase, error) {
	if err := errors.ValidateURL(supabaseURL); err != nil {
		return nil, err
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	if client == nil {
		client = httputil.NewClient(map[string]string{"apikey": anonKey})
	}
	return &Supabase{
		client:  client,
		baseURL: strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		bucket:  bucket,
		anonKey: anonKey,
		token:   token,
	}, nil
}

// Upload implements Uploader.
func (s *Supabase) Upload(ctx context.Context, objectPath string, body io.Reader, opts UploadOptions) error {
	p, err := CleanPath(objectPath)
	if err != nil {
		return err
	}

	token := s.anonKey
	if s.token != nil {
		if t := s.token(ctx); t != "" {
			token = t
		}
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	if opts.CacheControl != "" {
		headers["Cache-Control"] = opts.CacheControl
	}
	if opts.ContentType != "" {
		headers["Content-Type"] = opts.ContentType
	}
	if opts.Upsert {
		headers["x-upsert"] = "true"
	}

	_, err = s.client.Do(ctx, httputil.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, p),
		Headers: headers,
		Raw:     body,
	}, nil)
	if err != nil {
		return fmt.Errorf("upload %s: %w", p, err)
	}
	return nil
}

// PublicURL implements Uploader.
func (s *Supabase) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}
