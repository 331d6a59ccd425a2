// Package registry defines the dbdev registry data model and the storage
// query interface the website reads it through.
//
// # Data Model
//
//   - [PackageVersion]: one published version of a package, from the
//     package_versions view
//   - [Package]: a package with its latest version, from the packages and
//     popular_packages views
//   - [Profile]: a publisher (user or organization) from the profiles table
//
// Row types carry no nullable fields: backends coalesce NULL columns to zero
// values, so callers never see a partially populated row.
//
// # Storage Query Interface
//
// A [Store] executes a declarative [Query] (view, equality filters, ordering,
// range) and decodes the rows into a slice of row structs:
//
//	q := registry.From(registry.ViewPackageVersions).
//	    Eq("package_name", "olirice-index_advisor").
//	    OrderBy("created_at", registry.Descending)
//
//	var rows []registry.PackageVersion
//	err := store.Select(ctx, q, &rows)
//
// Cancelling ctx aborts the in-flight query. Implementations live in the
// postgrest (REST over HTTP), sqlite, mongo and memory subpackages.
package registry
