// Package query is the data access layer between pages and the registry.
//
// A [Client] holds query results keyed by a [Key]: an ordered tuple of a
// resource name and its parameters. Everything that reads or warms the same
// resource with the same parameters derives the same key, so a [Prefetch]
// during a page build is picked up by a later [Use] without a second remote
// call.
//
// A [Definition] ties a resource name to its key parameters and its fetch
// function:
//
//	var PackageVersions = query.Definition[Vars, []registry.PackageVersion]{
//	    Resource: "package-versions",
//	    Params:   func(v Vars) []string { return []string{v.Handle, v.PartialName} },
//	    Fetch:    fetchPackageVersions,
//	}
//
// [Use] subscribes an [Observer] to a key. It stays idle when disabled or
// when a required parameter is missing. Observers of the same key share one
// in-flight fetch; the fetch is cancelled once every observer has closed.
//
// [Intent] returns a memoised [Trigger] for hover-style prefetching.
//
// Clients are explicit values: create one per session or per static build
// and Close it when done. There is no package-level client.
package query
