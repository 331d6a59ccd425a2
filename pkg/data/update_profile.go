package data

import (
	"context"
	"fmt"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
)

// UpdateProfileVariables are the editable profile fields. AvatarURL is
// written only when non-empty.
type UpdateProfileVariables struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// UpdateProfile writes the profile fields for a handle.
func UpdateProfile(ctx context.Context, store registry.Store, vars UpdateProfileVariables) error {
	if err := errors.ValidateRequired("handle", vars.Handle); err != nil {
		return err
	}

	set := map[string]any{
		"display_name": vars.DisplayName,
		"bio":          vars.Bio,
	}
	if vars.AvatarURL != "" {
		set["avatar_url"] = vars.AvatarURL
	}
	n, err := store.Update(ctx, registry.Update{
		Table:   registry.TableProfiles,
		Filters: []registry.Filter{{Column: "handle", Value: vars.Handle}},
		Set:     set,
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return errors.NotFound("profile %q not found", vars.Handle)
	}
	return nil
}

// UpdateProfile runs the mutation and invalidates the cached profile of the
// handle on client.
func (q *Queries) UpdateProfile(ctx context.Context, client *query.Client, vars UpdateProfileVariables) error {
	if err := UpdateProfile(ctx, q.store, vars); err != nil {
		return err
	}
	if client != nil {
		client.Invalidate(ctx, query.DeriveKey(ResourceProfile, vars.Handle))
	}
	return nil
}
