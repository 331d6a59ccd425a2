// Package cache provides byte-oriented cache backends with TTLs.
//
// The query layer keeps live entries in memory; a [Cache] is the optional
// persistent tier behind it, used to share dehydrated query state between
// server instances and across CLI runs.
//
// Backends:
//   - [FileCache]: JSON files under a directory, for the CLI and single-node servers
//   - [RedisCache]: Redis, for multi-instance deployments
//   - [NullCache]: stores nothing
//
// Keys are produced by a [Keyer] so that every component namespaces its
// entries the same way.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a minimal byte store with TTLs.
//
// Get returns (data, true, nil) on hit and (nil, false, nil) on miss. An I/O
// or remote failure is reported as (nil, false, err). A ttl of 0 means the
// entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer generates cache keys for the different kinds of cached data.
type Keyer interface {
	// QueryKey generates a key for a query result identified by its
	// canonical query-key string.
	QueryKey(queryKey string) string

	// SnapshotKey generates a key for a dehydrated query-client snapshot.
	SnapshotKey(name string) string
}

// DefaultKeyer hashes keys so they are safe as file names and Redis keys.
type DefaultKeyer struct{}

func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// QueryKey returns "query:" followed by the hash of queryKey.
func (DefaultKeyer) QueryKey(queryKey string) string {
	return "query:" + Hash([]byte(queryKey))
}

// SnapshotKey returns "snapshot:" followed by the hash of name.
func (DefaultKeyer) SnapshotKey(name string) string {
	return "snapshot:" + Hash([]byte(name))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NullCache stores nothing. It stands in when persistence is disabled.
type NullCache struct{}

var _ Cache = NullCache{}

func NewNullCache() NullCache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
