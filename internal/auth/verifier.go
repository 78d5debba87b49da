package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/plantgate/internal/metrics"
	"github.com/khanghh/plantgate/internal/users"
	"github.com/spf13/cast"
)

// Verifier validates access tokens and materializes the calling user.
type Verifier struct {
	keys   *Keys
	store  users.CredentialStore
	parser *jwt.Parser
}

// Verify checks token and requires at least one of the required scopes. Every
// failure is terminal. Identity problems yield *AuthenticationError, a
// missing scope yields *InsufficientPermissionError. An empty required list
// is never satisfied.
func (v *Verifier) Verify(ctx context.Context, token string, required ...PermissionScope) (*AuthorizedUser, error) {
	authorized, err := v.verify(ctx, token, required)
	switch {
	case err == nil:
		metrics.TokenVerifications.WithLabelValues("ok").Inc()
	case IsAuthenticationError(err):
		metrics.TokenVerifications.WithLabelValues("unauthenticated").Inc()
	case IsInsufficientPermissionError(err):
		metrics.TokenVerifications.WithLabelValues("forbidden").Inc()
	default:
		metrics.TokenVerifications.WithLabelValues("error").Inc()
	}
	return authorized, err
}

func (v *Verifier) verify(ctx context.Context, token string, required []PermissionScope) (*AuthorizedUser, error) {
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, v.publicKey); err != nil {
		return nil, NewAuthenticationError(err.Error())
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, NewAuthenticationError("missing subject")
	}

	scopes, err := scopesClaim(claims)
	if err != nil {
		return nil, NewAuthenticationError(err.Error())
	}
	if !hasAnyScope(scopes, required) {
		return nil, NewInsufficientPermissionError(required)
	}

	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, NewAuthenticationError("missing expiration")
	}

	resources := make([]ResourceList, 3)
	for i, name := range []string{"organizations", "plants", "machines"} {
		raw, ok := claims[name]
		if !ok {
			return nil, NewAuthenticationError("missing " + name + " claim")
		}
		if resources[i], err = parseResourceList(raw); err != nil {
			return nil, NewAuthenticationError(name + ": " + err.Error())
		}
	}

	user, err := v.store.FindUserByEmail(ctx, subject)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, NewAuthenticationError("unknown user")
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", subject, err)
	}
	if user.Disabled {
		return nil, NewAuthenticationError("user disabled")
	}

	return &AuthorizedUser{
		Subject:       subject,
		ExpiresAt:     expiresAt.Time,
		Organizations: resources[0],
		Plants:        resources[1],
		Machines:      resources[2],
		Scopes:        scopes,
		User:          user,
	}, nil
}

func scopesClaim(claims jwt.MapClaims) ([]PermissionScope, error) {
	raw, ok := claims["scopes"]
	if !ok || raw == nil {
		return []PermissionScope{}, nil
	}
	ids, err := cast.ToIntSliceE(raw)
	if err != nil {
		return nil, errors.New("malformed scopes claim")
	}
	scopes := make([]PermissionScope, 0, len(ids))
	for _, id := range ids {
		scopes = append(scopes, PermissionScope(id))
	}
	return scopes, nil
}

func (v *Verifier) publicKey(*jwt.Token) (any, error) {
	return v.keys.PublicKey, nil
}

func NewVerifier(keys *Keys, store users.CredentialStore, opts ...Option) *Verifier {
	o := newOptions(opts)
	return &Verifier{
		keys:  keys,
		store: store,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{keys.Method.Alg()}),
			jwt.WithTimeFunc(o.now),
		),
	}
}
