// Package memory provides an in-process registry.Store for development and
// tests. Rows are held as column maps and queried the same way the SQL and
// REST backends query their views.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/matzehuels/dbdev/pkg/registry"
)

// Store is an in-memory registry.Store. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	views map[string][]map[string]any
}

var _ registry.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{views: make(map[string][]map[string]any)}
}

// Seed appends rows (a slice of row structs) to view.
func (s *Store) Seed(view string, rows any) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode seed: %w", err)
	}
	var maps []map[string]any
	if err := json.Unmarshal(data, &maps); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	s.mu.Lock()
	s.views[view] = append(s.views[view], maps...)
	s.mu.Unlock()
	return nil
}

// Select implements registry.Store.
func (s *Store) Select(ctx context.Context, q registry.Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	var rows []map[string]any
	for _, row := range s.views[q.View] {
		if matches(row, q.Filters) {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	if len(q.Orders) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compare(rows[i][o.Column], rows[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Direction == registry.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Range != nil {
		from, to := q.Range.From, q.Range.To+1
		if from > len(rows) {
			from = len(rows)
		}
		if to > len(rows) {
			to = len(rows)
		}
		rows = rows[from:to]
	}
	return registry.DecodeRows(rows, dest)
}

// Update implements registry.Store.
func (s *Store) Update(ctx context.Context, u registry.Update) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := u.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.views[u.Table] {
		if !matches(row, u.Filters) {
			continue
		}
		for col, v := range u.Set {
			row[col] = v
		}
		n++
	}
	return n, nil
}

// Close implements registry.Store.
func (s *Store) Close() error { return nil }

func matches(row map[string]any, filters []registry.Filter) bool {
	for _, f := range filters {
		v, ok := row[f.Column]
		if !ok || v == nil || fmt.Sprint(v) != f.Value {
			return false
		}
	}
	return true
}

// compare orders nil first, then numbers, then strings. RFC 3339 timestamps
// in UTC compare correctly as strings.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
