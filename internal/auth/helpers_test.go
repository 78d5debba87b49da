package auth_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/khanghh/plantgate/internal/auth"
	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/internal/users/userstest"
	"github.com/khanghh/plantgate/model"
	"github.com/stretchr/testify/require"
)

const testPassword = "s3cret"

func newTestKeys(t *testing.T) *auth.Keys {
	t.Helper()
	dir := t.TempDir()
	keys, err := auth.LoadKeys(auth.KeyConfig{
		Algorithm:      "EdDSA",
		PrivateKeyPath: filepath.Join(dir, "private.pem"),
		PublicKeyPath:  filepath.Join(dir, "public.pem"),
	})
	require.NoError(t, err)
	return keys
}

// newTestStore returns a store holding alice@example.com with access to
// org1/plantA/m1 and the default scope.
func newTestStore(t *testing.T) *userstest.MemoryStore {
	t.Helper()
	store := userstest.NewMemoryStore()
	require.NoError(t, store.UpsertSecurityScopes(context.Background(), auth.ScopeRecords()))
	store.AddOrganization("org1")
	store.AddPlant("plantA", "org1")
	store.AddMachine("m1", "plantA")

	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	store.AddUser(&model.User{
		Email:            "alice@example.com",
		Password:         hash,
		AllOrganizations: true,
		AllPlants:        true,
		AllMachines:      true,
	})
	store.GrantScope("alice@example.com", uint(auth.ScopeDefault))
	return store
}
