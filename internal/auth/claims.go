package auth

import (
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/plantgate/model"
	"github.com/khanghh/plantgate/params"
	"github.com/spf13/cast"
)

var errInvalidResourceList = errors.New("resource claim must be a list of ids or \"*\"")

// ResourceList is the value of a resource claim: either the wildcard "*" or
// an explicit list of ids.
type ResourceList struct {
	IDs      []string
	Wildcard bool
}

func AllResources() ResourceList {
	return ResourceList{Wildcard: true}
}

func Resources(ids ...string) ResourceList {
	if ids == nil {
		ids = []string{}
	}
	return ResourceList{IDs: ids}
}

func (l ResourceList) Contains(id string) bool {
	return l.Wildcard || slices.Contains(l.IDs, id)
}

func (l ResourceList) MarshalJSON() ([]byte, error) {
	if l.Wildcard {
		return json.Marshal(params.WildcardResource)
	}
	if l.IDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.IDs)
}

func (l *ResourceList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseResourceList(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func parseResourceList(raw any) (ResourceList, error) {
	switch v := raw.(type) {
	case string:
		if v == params.WildcardResource {
			return AllResources(), nil
		}
		return ResourceList{}, errInvalidResourceList
	case []any:
		ids, err := cast.ToStringSliceE(v)
		if err != nil {
			return ResourceList{}, errInvalidResourceList
		}
		return Resources(ids...), nil
	}
	return ResourceList{}, errInvalidResourceList
}

// AccessClaims is the claim set of an access token. Only sub and exp of the
// registered claims are emitted.
type AccessClaims struct {
	Organizations ResourceList      `json:"organizations"`
	Plants        ResourceList      `json:"plants"`
	Machines      ResourceList      `json:"machines"`
	Scopes        []PermissionScope `json:"scopes"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// AuthorizedUser is the verified identity of a request. Handlers authorize
// against it and nothing else.
type AuthorizedUser struct {
	Subject       string            `json:"sub"`
	ExpiresAt     time.Time         `json:"exp"`
	Organizations ResourceList      `json:"organizations"`
	Plants        ResourceList      `json:"plants"`
	Machines      ResourceList      `json:"machines"`
	Scopes        []PermissionScope `json:"scopes"`
	User          *model.User       `json:"-"`
}

func (u *AuthorizedUser) HasScope(scope PermissionScope) bool {
	return slices.Contains(u.Scopes, scope)
}

func (u *AuthorizedUser) CanAccessOrganization(id string) bool {
	return u.Organizations.Contains(id)
}

func (u *AuthorizedUser) CanAccessPlant(id string) bool {
	return u.Plants.Contains(id)
}

func (u *AuthorizedUser) CanAccessMachine(id string) bool {
	return u.Machines.Contains(id)
}
