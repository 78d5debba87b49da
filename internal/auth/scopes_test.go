package auth_test

import (
	"context"
	"testing"

	"github.com/khanghh/plantgate/internal/auth"
	"github.com/khanghh/plantgate/internal/users/userstest"
	"github.com/khanghh/plantgate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScopeMap(t *testing.T) {
	ctx := context.Background()
	store := userstest.NewMemoryStore()
	require.NoError(t, store.UpsertSecurityScopes(ctx, auth.ScopeRecords()))

	scopes, err := auth.LoadScopeMap(ctx, store)
	require.NoError(t, err)
	assert.Len(t, scopes, 3)
	assert.Equal(t, "default", scopes.Name(auth.ScopeDefault))
	assert.Equal(t, "admin", scopes.Name(auth.ScopeAdmin))
}

func TestLoadScopeMapUnknownScope(t *testing.T) {
	ctx := context.Background()
	store := userstest.NewMemoryStore()
	require.NoError(t, store.UpsertSecurityScopes(ctx, []model.SecurityScope{
		{ID: 1, Name: "default"},
		{ID: 42, Name: "superuser"},
	}))

	_, err := auth.LoadScopeMap(ctx, store)
	var cfgErr *auth.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, uint(42), cfgErr.ScopeID)
	assert.Equal(t, "superuser", cfgErr.Name)
}

func TestPermissionScopeString(t *testing.T) {
	assert.Equal(t, "write", auth.ScopeWrite.String())
	assert.Equal(t, "scope(9)", auth.PermissionScope(9).String())
	assert.False(t, auth.PermissionScope(0).Valid())
}
