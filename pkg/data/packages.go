package data

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
)

// PackagesVariables select one page of a publisher's packages.
type PackagesVariables struct {
	Handle string `json:"handle"`
	Page   int    `json:"page"`
}

// GetPackages returns one page of the packages published under a handle,
// newest first.
func GetPackages(ctx context.Context, store registry.Store, vars PackagesVariables) ([]registry.Package, error) {
	if err := errors.ValidateRequired("handle", vars.Handle); err != nil {
		return nil, err
	}

	q := registry.From(registry.ViewPackages).
		Eq("handle", vars.Handle).
		OrderBy("created_at", registry.Descending).
		WithRange(registry.GetPagination(vars.Page, registry.DefaultPageSize))

	var rows []registry.Package
	if err := store.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("packages: %w", err)
	}
	if rows == nil {
		rows = []registry.Package{}
	}
	return rows, nil
}

func packagesQuery(store registry.Store) query.Definition[PackagesVariables, []registry.Package] {
	return query.Definition[PackagesVariables, []registry.Package]{
		Resource: ResourcePackages,
		Params: func(v PackagesVariables) []string {
			return []string{v.Handle, strconv.Itoa(v.Page)}
		},
		Fetch: func(ctx context.Context, v PackagesVariables) ([]registry.Package, error) {
			return GetPackages(ctx, store, v)
		},
	}
}
