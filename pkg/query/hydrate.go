package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the serialisable state of a client.
type Snapshot struct {
	Queries []DehydratedQuery `json:"queries"`
}

// DehydratedQuery is one entry of a Snapshot.
type DehydratedQuery struct {
	Key       Key             `json:"queryKey"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"dataUpdatedAt"`
}

// Dehydrate captures every entry of the client.
func (c *Client) Dehydrate() (*Snapshot, error) {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	s := &Snapshot{Queries: make([]DehydratedQuery, 0, len(entries))}
	for _, e := range entries {
		var data json.RawMessage
		if raw, ok := e.data.(json.RawMessage); ok {
			data = raw
		} else {
			b, err := json.Marshal(e.data)
			if err != nil {
				return nil, fmt.Errorf("dehydrate %s: %w", e.key.String(), err)
			}
			data = b
		}
		s.Queries = append(s.Queries, DehydratedQuery{Key: e.key, Data: data, UpdatedAt: e.updatedAt})
	}
	return s, nil
}

// Hydrate loads a snapshot. An entry already newer than the snapshot's is
// kept.
func (c *Client) Hydrate(s *Snapshot) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range s.Queries {
		if e, ok := c.entries[q.Key.String()]; ok && !e.updatedAt.Before(q.UpdatedAt) {
			continue
		}
		c.setLocked(q.Key, q.Data, q.UpdatedAt, c.defaults.GCTime)
	}
}

// SaveSnapshot dehydrates the client into the persistent cache under name.
func (c *Client) SaveSnapshot(ctx context.Context, name string, ttl time.Duration) error {
	if c.persist == nil {
		return nil
	}
	s, err := c.Dehydrate()
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.persist.Set(ctx, c.keyer.SnapshotKey(name), data, ttl)
}

// LoadSnapshot hydrates the client from the persistent cache. It reports
// whether a snapshot was found.
func (c *Client) LoadSnapshot(ctx context.Context, name string) (bool, error) {
	if c.persist == nil {
		return false, nil
	}
	data, ok, err := c.persist.Get(ctx, c.keyer.SnapshotKey(name))
	if err != nil || !ok {
		return false, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	c.Hydrate(&s)
	return true, nil
}
