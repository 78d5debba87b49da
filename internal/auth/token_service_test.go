package auth_test

import (
	"context"
	"database/sql/driver"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khanghh/plantgate/internal/auth"
	"github.com/khanghh/plantgate/internal/store"
	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueTokenPair(t *testing.T) {
	keys := newTestKeys(t)
	credentials := newTestStore(t)
	tokens := auth.NewTokenService(keys, credentials)
	verifier := auth.NewVerifier(keys, credentials)
	ctx := context.Background()

	pair, err := tokens.IssueTokenPair(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), pair.ExpiresAt, 2*time.Second)

	user, err := verifier.Verify(ctx, pair.AccessToken, auth.ScopeDefault)
	require.NoError(t, err)
	assert.Equal(t, auth.Resources("org1"), user.Organizations)
	assert.Equal(t, auth.Resources("plantA"), user.Plants)
	assert.Equal(t, auth.Resources("m1"), user.Machines)

	_, err = tokens.IssueTokenPair(ctx, "alice@example.com", "wrong")
	assert.True(t, auth.IsAuthenticationError(err))

	credentials.SetDisabled("alice@example.com", true)
	_, err = tokens.IssueTokenPair(ctx, "alice@example.com", testPassword)
	assert.True(t, auth.IsAuthenticationError(err))
}

func TestRefreshPicksUpRevokedGrant(t *testing.T) {
	keys := newTestKeys(t)
	credentials := newTestStore(t)
	credentials.AddPlant("plantB", "org1")
	credentials.AddUser(&model.User{Email: "bob@example.com"})
	credentials.GrantOrganization("bob@example.com", "org1")
	credentials.GrantPlant("bob@example.com", "plantA")
	credentials.GrantPlant("bob@example.com", "plantB")
	credentials.GrantScope("bob@example.com", uint(auth.ScopeDefault))

	tokens := auth.NewTokenService(keys, credentials)
	verifier := auth.NewVerifier(keys, credentials)
	ctx := context.Background()

	refreshToken, _, err := tokens.CreateRefreshToken("bob@example.com")
	require.NoError(t, err)
	before, err := tokens.AccessTokenFromRefreshToken(ctx, refreshToken)
	require.NoError(t, err)
	assert.Equal(t, refreshToken, before.RefreshToken)

	credentials.RevokePlant("bob@example.com", "plantB")

	after, err := tokens.AccessTokenFromRefreshToken(ctx, refreshToken)
	require.NoError(t, err)
	assert.Equal(t, refreshToken, after.RefreshToken)

	fresh, err := verifier.Verify(ctx, after.AccessToken, auth.ScopeDefault)
	require.NoError(t, err)
	assert.Equal(t, []string{"plantA"}, fresh.Plants.IDs)

	stale, err := verifier.Verify(ctx, before.AccessToken, auth.ScopeDefault)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"plantA", "plantB"}, stale.Plants.IDs)
}

func TestRefreshRejectsInvalidTokens(t *testing.T) {
	keys := newTestKeys(t)
	credentials := newTestStore(t)
	ctx := context.Background()

	issuedAt := time.Now().Add(-15 * 24 * time.Hour)
	past := auth.NewTokenService(keys, credentials, auth.WithClock(func() time.Time { return issuedAt }))
	expired, _, err := past.CreateRefreshToken("alice@example.com")
	require.NoError(t, err)

	tokens := auth.NewTokenService(keys, credentials)
	_, err = tokens.AccessTokenFromRefreshToken(ctx, expired)
	assert.True(t, auth.IsAuthenticationError(err), err)

	_, err = tokens.AccessTokenFromRefreshToken(ctx, "garbage")
	assert.True(t, auth.IsAuthenticationError(err), err)

	unknown, _, err := tokens.CreateRefreshToken("nobody@example.com")
	require.NoError(t, err)
	_, err = tokens.AccessTokenFromRefreshToken(ctx, unknown)
	assert.True(t, auth.IsAuthenticationError(err), err)

	foreign, _, err := auth.NewTokenService(newTestKeys(t), credentials).CreateRefreshToken("alice@example.com")
	require.NoError(t, err)
	_, err = tokens.AccessTokenFromRefreshToken(ctx, foreign)
	assert.True(t, auth.IsAuthenticationError(err), err)
}

func TestRefreshTokenRotation(t *testing.T) {
	keys := newTestKeys(t)
	credentials := newTestStore(t)
	storage := store.NewMemoryStorage()
	t.Cleanup(func() { storage.Close() })
	tokens := auth.NewTokenService(keys, credentials, auth.WithRefreshTokenRotation(storage))
	ctx := context.Background()

	pair, err := tokens.IssueTokenPair(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	rotated, err := tokens.AccessTokenFromRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = tokens.AccessTokenFromRefreshToken(ctx, pair.RefreshToken)
	assert.True(t, auth.IsAuthenticationError(err), err)

	_, err = tokens.AccessTokenFromRefreshToken(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

// unavailableStore fails the next failures transactions with a driver error.
type unavailableStore struct {
	users.CredentialStore
	failures atomic.Int32
}

func (s *unavailableStore) Transaction(ctx context.Context, fn func(tx users.CredentialStore) error) error {
	if s.failures.Add(-1) >= 0 {
		return driver.ErrBadConn
	}
	return s.CredentialStore.Transaction(ctx, fn)
}

func TestRefreshTokenSurvivesStoreFailure(t *testing.T) {
	keys := newTestKeys(t)
	credentials := &unavailableStore{CredentialStore: newTestStore(t)}
	storage := store.NewMemoryStorage()
	t.Cleanup(func() { storage.Close() })
	tokens := auth.NewTokenService(keys, credentials, auth.WithRefreshTokenRotation(storage))
	ctx := context.Background()

	pair, err := tokens.IssueTokenPair(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	credentials.failures.Store(1)
	_, err = tokens.AccessTokenFromRefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.False(t, auth.IsAuthenticationError(err))

	rotated, err := tokens.AccessTokenFromRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", rotated.Subject)
	assert.NotZero(t, rotated.UserID)

	// a successful refresh still burns the token
	_, err = tokens.AccessTokenFromRefreshToken(ctx, pair.RefreshToken)
	assert.True(t, auth.IsAuthenticationError(err), err)
}

func TestRefreshTokenStaysBurnedForDisabledUser(t *testing.T) {
	keys := newTestKeys(t)
	credentials := newTestStore(t)
	storage := store.NewMemoryStorage()
	t.Cleanup(func() { storage.Close() })
	tokens := auth.NewTokenService(keys, credentials, auth.WithRefreshTokenRotation(storage))
	ctx := context.Background()

	pair, err := tokens.IssueTokenPair(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	credentials.SetDisabled("alice@example.com", true)
	_, err = tokens.AccessTokenFromRefreshToken(ctx, pair.RefreshToken)
	var authErr *auth.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "user disabled", authErr.Reason)
	assert.Equal(t, "alice@example.com", authErr.Subject)
	assert.NotZero(t, authErr.UserID)

	credentials.SetDisabled("alice@example.com", false)
	_, err = tokens.AccessTokenFromRefreshToken(ctx, pair.RefreshToken)
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "refresh token already used", authErr.Reason)
}

func TestCreateAccessTokenDefaultTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens := auth.NewTokenService(newTestKeys(t), newTestStore(t),
		auth.WithClock(func() time.Time { return now }),
		auth.WithTokenTTL(10*time.Minute, 0),
	)

	_, expiresAt, err := tokens.CreateAccessToken(auth.AccessClaims{}, 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), expiresAt)

	_, expiresAt, err = tokens.CreateAccessToken(auth.AccessClaims{}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)
}
