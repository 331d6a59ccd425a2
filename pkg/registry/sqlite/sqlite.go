// Package sqlite implements registry.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo). It backs local development and self-hosted
// mirrors of the registry.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dbdev/pkg/registry"

	_ "modernc.org/sqlite"
)

// Store implements registry.Store using SQLite.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var _ registry.Store = (*Store)(nil)

// Open opens (or creates) a SQLite database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, logger: logger.With("component", "sqlite")}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Select implements registry.Store.
func (s *Store) Select(ctx context.Context, q registry.Query, dest any) error {
	if err := q.Validate(); err != nil {
		return err
	}
	stmt, args := buildSelect(q)
	s.logger.Debug("sql", "op", "select", "query", q.String())

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("select %s: %w", q.View, err)
	}
	defer rows.Close()

	maps, err := scanMaps(rows)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("scan %s: %w", q.View, err)
	}
	return registry.DecodeRows(maps, dest)
}

// Update implements registry.Store.
func (s *Store) Update(ctx context.Context, u registry.Update) (int64, error) {
	if err := u.Validate(); err != nil {
		return 0, err
	}
	stmt, args := buildUpdate(u)
	s.logger.Debug("sql", "op", "update", "table", u.Table)

	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("update %s: %w", u.Table, err)
	}
	return res.RowsAffected()
}

func buildSelect(q registry.Query) (string, []any) {
	var b strings.Builder
	var args []any
	fmt.Fprintf(&b, "SELECT * FROM %s", q.View)
	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s = ?", f.Column)
		args = append(args, f.Value)
	}
	for i, o := range q.Orders {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(o.Column)
		if o.Direction == registry.Descending {
			b.WriteString(" DESC")
		}
	}
	if q.Range != nil {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Range.Limit(), q.Range.From)
	}
	return b.String(), args
}

func buildUpdate(u registry.Update) (string, []any) {
	cols := make([]string, 0, len(u.Set))
	for col := range u.Set {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var b strings.Builder
	var args []any
	fmt.Fprintf(&b, "UPDATE %s SET ", u.Table)
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = ?", col)
		args = append(args, u.Set[col])
	}
	for i, f := range u.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s = ?", f.Column)
		args = append(args, f.Value)
	}
	return b.String(), args
}

func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if str, ok := v.(string); ok && strings.HasSuffix(col, "_at") {
				v = normalizeTime(str)
			}
			m[col] = v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// sqliteTimeLayouts are the formats SQLite's date functions produce.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// normalizeTime rewrites a timestamp stored as SQLite text to RFC 3339.
// Values without a zone are UTC. Unrecognised values pass through.
func normalizeTime(s string) string {
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return s
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return s
}
