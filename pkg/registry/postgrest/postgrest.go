// Package postgrest implements registry.Store against the Supabase database
// REST API (PostgREST).
package postgrest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/httputil"
	"github.com/matzehuels/dbdev/pkg/registry"
)

// TokenFunc returns the bearer token for the current caller, or "" to fall
// back to the anon key.
type TokenFunc func(ctx context.Context) string

// Store is a registry.Store backed by PostgREST.
type Store struct {
	client  *httputil.Client
	baseURL string
	anonKey string
	token   TokenFunc
}

var _ registry.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *httputil.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithToken sets the per-request bearer token source. Row-level security
// needs the signed-in user's access token for writes.
func WithToken(fn TokenFunc) Option {
	return func(s *Store) { s.token = fn }
}

// New returns a Store for the Supabase project at supabaseURL.
func New(supabaseURL, anonKey string, opts ...Option) (*Store, error) {
	if err := errors.ValidateURL(supabaseURL); err != nil {
		return nil, err
	}
	s := &Store{
		baseURL: strings.TrimRight(supabaseURL, "/") + "/rest/v1",
		anonKey: anonKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = httputil.NewClient(map[string]string{"apikey": anonKey})
	}
	return s, nil
}

// Select implements registry.Store.
func (s *Store) Select(ctx context.Context, q registry.Query, dest any) error {
	if err := q.Validate(); err != nil {
		return err
	}

	params := url.Values{"select": {"*"}}
	addFilters(params, q.Filters)
	if len(q.Orders) > 0 {
		var parts []string
		for _, o := range q.Orders {
			dir := "asc"
			if o.Direction == registry.Descending {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}

	headers := s.headers(ctx)
	if q.Range != nil {
		headers["Range-Unit"] = "items"
		headers["Range"] = fmt.Sprintf("%d-%d", q.Range.From, q.Range.To)
	}

	var rows []map[string]any
	_, err := s.client.Do(ctx, httputil.Request{
		Method:  http.MethodGet,
		URL:     s.baseURL + "/" + q.View + "?" + params.Encode(),
		Headers: headers,
	}, &rows)
	if q.Range != nil && rangeNotSatisfiable(err) {
		// PostgREST answers 416 (PGRST103) for an offset past the last row.
		return registry.DecodeRows(nil, dest)
	}
	if err != nil {
		return fmt.Errorf("select %s: %w", q.View, err)
	}
	return registry.DecodeRows(rows, dest)
}

func rangeNotSatisfiable(err error) bool {
	var se *httputil.StatusError
	return stderrors.As(err, &se) && se.StatusCode == http.StatusRequestedRangeNotSatisfiable
}

// Update implements registry.Store.
func (s *Store) Update(ctx context.Context, u registry.Update) (int64, error) {
	if err := u.Validate(); err != nil {
		return 0, err
	}

	params := url.Values{}
	addFilters(params, u.Filters)
	headers := s.headers(ctx)
	headers["Prefer"] = "return=representation"

	var rows []json.RawMessage
	_, err := s.client.Do(ctx, httputil.Request{
		Method:  http.MethodPatch,
		URL:     s.baseURL + "/" + u.Table + "?" + params.Encode(),
		Headers: headers,
		Body:    u.Set,
	}, &rows)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", u.Table, err)
	}
	return int64(len(rows)), nil
}

// Close implements registry.Store.
func (s *Store) Close() error { return nil }

func (s *Store) headers(ctx context.Context) map[string]string {
	token := s.anonKey
	if s.token != nil {
		if t := s.token(ctx); t != "" {
			token = t
		}
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func addFilters(params url.Values, filters []registry.Filter) {
	for _, f := range filters {
		params.Add(f.Column, "eq."+f.Value)
	}
}
