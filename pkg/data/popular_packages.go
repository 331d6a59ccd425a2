package data

import (
	"context"
	"fmt"

	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
)

// PopularPackagesVariables is empty: the landing page list takes no
// parameters.
type PopularPackagesVariables struct{}

// GetPopularPackages returns packages by download count, most popular first.
func GetPopularPackages(ctx context.Context, store registry.Store) ([]registry.Package, error) {
	q := registry.From(registry.ViewPopularPackages).
		OrderBy("downloads", registry.Descending)

	var rows []registry.Package
	if err := store.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("popular packages: %w", err)
	}
	if rows == nil {
		rows = []registry.Package{}
	}
	return rows, nil
}

func popularPackagesQuery(store registry.Store) query.Definition[PopularPackagesVariables, []registry.Package] {
	return query.Definition[PopularPackagesVariables, []registry.Package]{
		Resource: ResourcePopularPackages,
		Fetch: func(ctx context.Context, _ PopularPackagesVariables) ([]registry.Package, error) {
			return GetPopularPackages(ctx, store)
		},
	}
}
