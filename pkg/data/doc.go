// Package data holds the registry queries the website reads and the
// mutations it performs.
//
// Each query comes in two forms: a plain fetch function taking a
// registry.Store (GetPackageVersions, GetProfile, ...) and a
// query.Definition on [Queries] so pages can Use, Prefetch or Intent it
// through a shared query.Client:
//
//	q := data.New(store)
//	obs := query.Use(ctx, client, q.PackageVersions, data.PackageVersionsVariables{
//	    Handle: "olirice", PartialName: "index_advisor",
//	})
package data

import (
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
)

// Resource names, the first element of every query key.
const (
	ResourcePackageVersions = "package-versions"
	ResourcePopularPackages = "popular-packages"
	ResourceProfile         = "profile"
	ResourcePackages        = "packages"
)

// Queries binds the registry queries to a store.
type Queries struct {
	store registry.Store

	PackageVersions query.Definition[PackageVersionsVariables, []registry.PackageVersion]
	PopularPackages query.Definition[PopularPackagesVariables, []registry.Package]
	Profile         query.Definition[ProfileVariables, registry.Profile]
	Packages        query.Definition[PackagesVariables, []registry.Package]
}

// New returns the queries for store.
func New(store registry.Store) *Queries {
	return &Queries{
		store:           store,
		PackageVersions: packageVersionsQuery(store),
		PopularPackages: popularPackagesQuery(store),
		Profile:         profileQuery(store),
		Packages:        packagesQuery(store),
	}
}

// Store returns the underlying store.
func (q *Queries) Store() registry.Store { return q.store }
