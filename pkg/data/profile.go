package data

import (
	"context"
	"fmt"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
)

// ProfileVariables select a publisher by handle.
type ProfileVariables struct {
	Handle string `json:"handle"`
}

// GetProfile returns the profile for a handle, or a NOT_FOUND error.
func GetProfile(ctx context.Context, store registry.Store, vars ProfileVariables) (registry.Profile, error) {
	if err := errors.ValidateRequired("handle", vars.Handle); err != nil {
		return registry.Profile{}, err
	}

	q := registry.From(registry.TableProfiles).Eq("handle", vars.Handle).Limit(1)
	var rows []registry.Profile
	if err := store.Select(ctx, q, &rows); err != nil {
		return registry.Profile{}, fmt.Errorf("profile: %w", err)
	}
	if len(rows) == 0 {
		return registry.Profile{}, errors.NotFound("profile %q not found", vars.Handle)
	}
	return rows[0], nil
}

func profileQuery(store registry.Store) query.Definition[ProfileVariables, registry.Profile] {
	return query.Definition[ProfileVariables, registry.Profile]{
		Resource: ResourceProfile,
		Params:   func(v ProfileVariables) []string { return []string{v.Handle} },
		Fetch: func(ctx context.Context, v ProfileVariables) (registry.Profile, error) {
			return GetProfile(ctx, store, v)
		},
	}
}
