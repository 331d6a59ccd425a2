package data

import (
	"context"
	"fmt"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
)

// PackageVersionsVariables select the versions of one package. An empty
// field is absent.
type PackageVersionsVariables struct {
	Handle      string `json:"handle"`
	PartialName string `json:"partialName"`
}

// GetPackageVersions returns every version of the package
// "{handle}-{partialName}", newest first. A missing handle or partial name
// is a validation error and no query is sent. A package without versions
// yields an empty slice.
func GetPackageVersions(ctx context.Context, store registry.Store, vars PackageVersionsVariables) ([]registry.PackageVersion, error) {
	if err := errors.ValidateRequired("handle", vars.Handle); err != nil {
		return nil, err
	}
	if err := errors.ValidateRequired("partialName", vars.PartialName); err != nil {
		return nil, err
	}

	q := registry.From(registry.ViewPackageVersions).
		Eq("package_name", registry.FullName(vars.Handle, vars.PartialName)).
		OrderBy("created_at", registry.Descending)

	var rows []registry.PackageVersion
	if err := store.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("package versions: %w", err)
	}
	if rows == nil {
		rows = []registry.PackageVersion{}
	}
	return rows, nil
}

func packageVersionsQuery(store registry.Store) query.Definition[PackageVersionsVariables, []registry.PackageVersion] {
	return query.Definition[PackageVersionsVariables, []registry.PackageVersion]{
		Resource: ResourcePackageVersions,
		Params: func(v PackageVersionsVariables) []string {
			return []string{v.Handle, v.PartialName}
		},
		Fetch: func(ctx context.Context, v PackageVersionsVariables) ([]registry.PackageVersion, error) {
			return GetPackageVersions(ctx, store, v)
		},
	}
}
