package auth

import (
	"context"
	"slices"

	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/model"
)

// ResolvedScopes is the effective authorization of a user at resolution time.
type ResolvedScopes struct {
	Organizations []string
	Plants        []string
	Machines      []string
	Scopes        []PermissionScope
}

// Resolver expands a user's grants into resource ids. Each tier is filtered
// against the tier above it, so a grant can never reach a resource whose
// ancestor is not granted.
type Resolver struct{}

func (Resolver) Resolve(ctx context.Context, store users.CredentialStore, user *model.User) (*ResolvedScopes, error) {
	orgIDs, err := resolveOrganizations(ctx, store, user)
	if err != nil {
		return nil, err
	}
	plantIDs, err := resolvePlants(ctx, store, user, orgIDs)
	if err != nil {
		return nil, err
	}
	machineIDs, err := resolveMachines(ctx, store, user, plantIDs)
	if err != nil {
		return nil, err
	}
	return &ResolvedScopes{
		Organizations: orgIDs,
		Plants:        plantIDs,
		Machines:      machineIDs,
		Scopes:        resolvePermissionScopes(user),
	}, nil
}

func resolveOrganizations(ctx context.Context, store users.CredentialStore, user *model.User) ([]string, error) {
	if user.AllOrganizations {
		orgs, err := store.ListOrganizations(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(orgs))
		for _, org := range orgs {
			ids = append(ids, org.ID)
		}
		return ids, nil
	}
	ids := make([]string, 0, len(user.Organizations))
	for _, grant := range user.Organizations {
		if grant.Organization == nil {
			continue
		}
		ids = appendUnique(ids, grant.Organization.ID)
	}
	return ids, nil
}

func resolvePlants(ctx context.Context, store users.CredentialStore, user *model.User, orgIDs []string) ([]string, error) {
	if user.AllPlants {
		plants, err := store.ListPlants(ctx, orgIDs)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(plants))
		for _, plant := range plants {
			ids = append(ids, plant.ID)
		}
		return ids, nil
	}
	ids := make([]string, 0, len(user.Plants))
	for _, grant := range user.Plants {
		if grant.Plant == nil || !slices.Contains(orgIDs, grant.Plant.OrganizationID) {
			continue
		}
		ids = appendUnique(ids, grant.Plant.ID)
	}
	return ids, nil
}

func resolveMachines(ctx context.Context, store users.CredentialStore, user *model.User, plantIDs []string) ([]string, error) {
	if user.AllMachines {
		machines, err := store.ListMachines(ctx, plantIDs)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(machines))
		for _, machine := range machines {
			ids = append(ids, machine.ID)
		}
		return ids, nil
	}
	ids := make([]string, 0, len(user.Machines))
	for _, grant := range user.Machines {
		if grant.Machine == nil || !slices.Contains(plantIDs, grant.Machine.PlantID) {
			continue
		}
		ids = appendUnique(ids, grant.Machine.ID)
	}
	return ids, nil
}

func resolvePermissionScopes(user *model.User) []PermissionScope {
	scopes := make([]PermissionScope, 0, len(user.Scopes))
	for _, grant := range user.Scopes {
		if grant.Scope == nil {
			continue
		}
		scope := PermissionScope(grant.Scope.ID)
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
