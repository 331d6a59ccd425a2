package query

import (
	"context"
	"encoding/json"
	"fmt"
)

// FetchFunc loads a value. It must honour ctx cancellation.
type FetchFunc func(ctx context.Context) (any, error)

// Definition describes a query resource with variables V and result T.
type Definition[V, T any] struct {
	// Resource is the first element of every key.
	Resource string

	// Params returns the key parameters for vars, in order. All of them
	// are required: an empty parameter keeps observers idle.
	Params func(vars V) []string

	// Fetch loads the result for vars.
	Fetch func(ctx context.Context, vars V) (T, error)
}

// Key derives the cache key for vars.
func (d Definition[V, T]) Key(vars V) Key {
	var params []string
	if d.Params != nil {
		params = d.Params(vars)
	}
	return DeriveKey(d.Resource, params...)
}

// Ready reports whether every required parameter of vars is present.
func (d Definition[V, T]) Ready(vars V) bool {
	if d.Params == nil {
		return true
	}
	for _, p := range d.Params(vars) {
		if p == "" {
			return false
		}
	}
	return true
}

func (d Definition[V, T]) fetcher(vars V) FetchFunc {
	return func(ctx context.Context) (any, error) {
		return d.Fetch(ctx, vars)
	}
}

// decode returns v as a T. Hydrated or persisted entries hold raw JSON
// until first read.
func decode[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var out T
	raw, ok := v.(json.RawMessage)
	if !ok {
		return out, fmt.Errorf("query: cached value has type %T", v)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("query: decode cached value: %w", err)
	}
	return out, nil
}
