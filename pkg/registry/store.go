package registry

import "context"

// Store is the storage query interface.
//
// Select decodes the rows matched by q into dest, a pointer to a slice of
// row structs. Zero matching rows leave dest as an empty, non-nil slice.
// Transport and query failures are returned as-is; cancelling ctx aborts
// the in-flight operation and returns ctx.Err().
//
// Update applies u and returns the number of affected rows. Backends that
// cannot write return a NOT_IMPLEMENTED error.
type Store interface {
	Select(ctx context.Context, q Query, dest any) error
	Update(ctx context.Context, u Update) (int64, error)
	Close() error
}
