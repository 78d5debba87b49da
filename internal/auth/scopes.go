package auth

import (
	"context"
	"fmt"

	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/model"
)

// PermissionScope is a capability an endpoint may require. Values are stable
// and identical to the ids of the security_scope table.
type PermissionScope int

const (
	ScopeDefault PermissionScope = iota + 1
	ScopeWrite
	ScopeAdmin
)

var scopeNames = map[PermissionScope]string{
	ScopeDefault: "default",
	ScopeWrite:   "write",
	ScopeAdmin:   "admin",
}

func (s PermissionScope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

func (s PermissionScope) Valid() bool {
	_, ok := scopeNames[s]
	return ok
}

// AllScopes returns the enumeration in id order.
func AllScopes() []PermissionScope {
	return []PermissionScope{ScopeDefault, ScopeWrite, ScopeAdmin}
}

// ScopeRecords returns the enumeration in its persisted form.
func ScopeRecords() []model.SecurityScope {
	records := make([]model.SecurityScope, 0, len(scopeNames))
	for _, scope := range AllScopes() {
		records = append(records, model.SecurityScope{ID: uint(scope), Name: scope.String()})
	}
	return records
}

// ScopeMap maps every persisted scope to its display name. It is loaded once
// at startup and read-only afterwards.
type ScopeMap map[PermissionScope]string

func (m ScopeMap) Name(scope PermissionScope) string {
	if name, ok := m[scope]; ok {
		return name
	}
	return scope.String()
}

// LoadScopeMap reads the persisted scopes and checks them against the
// enumeration. An unknown id yields a *ConfigurationError and the process
// must not start.
func LoadScopeMap(ctx context.Context, store users.CredentialStore) (ScopeMap, error) {
	records, err := store.ListSecurityScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load security scopes: %w", err)
	}
	scopes := make(ScopeMap, len(records))
	for _, record := range records {
		scope := PermissionScope(record.ID)
		if !scope.Valid() {
			return nil, &ConfigurationError{ScopeID: record.ID, Name: record.Name}
		}
		scopes[scope] = record.Name
	}
	return scopes, nil
}

func hasAnyScope(granted []PermissionScope, required []PermissionScope) bool {
	for _, want := range required {
		for _, have := range granted {
			if have == want {
				return true
			}
		}
	}
	return false
}
