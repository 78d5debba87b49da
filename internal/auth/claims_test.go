package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceListJSON(t *testing.T) {
	data, err := json.Marshal(AllResources())
	require.NoError(t, err)
	assert.JSONEq(t, `"*"`, string(data))

	data, err = json.Marshal(ResourceList{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	var list ResourceList
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &list))
	assert.Equal(t, Resources("a", "b"), list)
	assert.True(t, list.Contains("a"))
	assert.False(t, list.Contains("c"))

	require.NoError(t, json.Unmarshal([]byte(`"*"`), &list))
	assert.True(t, list.Contains("anything"))

	assert.Error(t, json.Unmarshal([]byte(`"plantA"`), &list))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"plantA"}`), &list))
}

func TestAuthorizedUserAccess(t *testing.T) {
	user := &AuthorizedUser{
		Organizations: AllResources(),
		Plants:        Resources("plantA"),
		Machines:      Resources(),
		Scopes:        []PermissionScope{ScopeDefault},
	}
	assert.True(t, user.CanAccessOrganization("org9"))
	assert.True(t, user.CanAccessPlant("plantA"))
	assert.False(t, user.CanAccessPlant("plantB"))
	assert.False(t, user.CanAccessMachine("m1"))
	assert.True(t, user.HasScope(ScopeDefault))
	assert.False(t, user.HasScope(ScopeAdmin))
}
