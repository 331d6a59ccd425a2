package registry

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/matzehuels/dbdev/pkg/errors"
)

// Direction of an ordering clause.
type Direction bool

const (
	Ascending  Direction = false
	Descending Direction = true
)

// Filter is an equality predicate on a column.
type Filter struct {
	Column string
	Value  string
}

// Order is one ordering clause.
type Order struct {
	Column    string
	Direction Direction
}

// Query is a declarative select over a view or table.
type Query struct {
	View    string
	Filters []Filter
	Orders  []Order
	Range   *Pagination
}

// From starts a query over view.
func From(view string) Query {
	return Query{View: view}
}

// Eq adds an equality filter.
func (q Query) Eq(column, value string) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Value: value})
	return q
}

// OrderBy appends an ordering clause.
func (q Query) OrderBy(column string, dir Direction) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Column: column, Direction: dir})
	return q
}

// WithRange restricts the result to an inclusive window.
func (q Query) WithRange(p Pagination) Query {
	q.Range = &p
	return q
}

// Limit restricts the result to the first n rows.
func (q Query) Limit(n int) Query {
	return q.WithRange(Pagination{From: 0, To: n - 1})
}

// Update sets columns on the rows of a table matching the filters.
type Update struct {
	Table   string
	Filters []Filter
	Set     map[string]any
}

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks that every identifier is a plain lowercase name, so
// backends can splice them into SQL or REST paths.
func (q Query) Validate() error {
	if !identRegex.MatchString(q.View) {
		return errors.NewValidation("view", "invalid view name %q", q.View)
	}
	for _, f := range q.Filters {
		if !identRegex.MatchString(f.Column) {
			return errors.NewValidation("column", "invalid column name %q", f.Column)
		}
	}
	for _, o := range q.Orders {
		if !identRegex.MatchString(o.Column) {
			return errors.NewValidation("column", "invalid column name %q", o.Column)
		}
	}
	if q.Range != nil && (q.Range.From < 0 || q.Range.To < q.Range.From) {
		return errors.NewValidation("range", "invalid range %d-%d", q.Range.From, q.Range.To)
	}
	return nil
}

// Validate checks identifiers and that at least one filter guards the update.
func (u Update) Validate() error {
	if !identRegex.MatchString(u.Table) {
		return errors.NewValidation("table", "invalid table name %q", u.Table)
	}
	if len(u.Filters) == 0 {
		return errors.NewValidation("filters", "update without filters")
	}
	for _, f := range u.Filters {
		if !identRegex.MatchString(f.Column) {
			return errors.NewValidation("column", "invalid column name %q", f.Column)
		}
	}
	for col := range u.Set {
		if !identRegex.MatchString(col) {
			return errors.NewValidation("column", "invalid column name %q", col)
		}
	}
	return nil
}

// String renders the query for logs.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.View)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " %s=%s", f.Column, f.Value)
	}
	for _, o := range q.Orders {
		dir := "asc"
		if o.Direction == Descending {
			dir = "desc"
		}
		fmt.Fprintf(&b, " order:%s.%s", o.Column, dir)
	}
	if q.Range != nil {
		fmt.Fprintf(&b, " range:%d-%d", q.Range.From, q.Range.To)
	}
	return b.String()
}

// DecodeRows converts generic column maps into dest, a pointer to a slice of
// row structs, through their JSON tags. NULL columns decode to zero values.
func DecodeRows(rows []map[string]any, dest any) error {
	if rows == nil {
		rows = []map[string]any{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}
