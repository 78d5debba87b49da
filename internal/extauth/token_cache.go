package extauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khanghh/plantgate/internal/common"
	"github.com/khanghh/plantgate/internal/metrics"
	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/model"
	"github.com/khanghh/plantgate/params"
	"golang.org/x/sync/singleflight"
)

// Credentials is a usable bearer credential for the external system.
type Credentials struct {
	AccessToken string
	InstanceURL string
}

type CacheConfig struct {
	InstanceURL string        // served with cached credentials
	TTL         time.Duration // how long an exchanged credential is reused
}

// TokenCache is a pull-through cache of external credentials stored
// encrypted on the user row. Refreshes are serialized per subject.
type TokenCache struct {
	store       users.CredentialStore
	cipher      *common.CacheCipher
	provider    Provider
	instanceURL string
	ttl         time.Duration
	now         func() time.Time
	group       singleflight.Group
}

// Credentials returns the cached credential of externalUsername, exchanging
// a new one with the identity provider on a miss.
func (c *TokenCache) Credentials(ctx context.Context, externalUsername string) (*Credentials, error) {
	user, err := c.store.FindUserByExternalUsername(ctx, externalUsername, false)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrExternalAccountNotLinked
	}
	if err != nil {
		return nil, err
	}
	if creds, ok := c.cached(user); ok {
		metrics.ExternalTokenCache.WithLabelValues("hit").Inc()
		return creds, nil
	}

	// the flight is shared by all waiters and ignores the first caller's cancellation
	flightCtx := context.WithoutCancel(ctx)
	val, err, _ := c.group.Do(externalUsername, func() (any, error) {
		return c.refresh(flightCtx, externalUsername)
	})
	if err != nil {
		return nil, err
	}
	return val.(*Credentials), nil
}

func (c *TokenCache) cached(user *model.User) (*Credentials, bool) {
	if !user.HasExternalToken(c.now()) {
		return nil, false
	}
	accessToken, err := c.cipher.Decrypt(user.ExternalAccessToken)
	if err != nil {
		slog.Warn("Discarding undecryptable external token", "userID", user.ID, "error", err)
		return nil, false
	}
	return &Credentials{AccessToken: accessToken, InstanceURL: c.instanceURL}, true
}

func (c *TokenCache) refresh(ctx context.Context, externalUsername string) (*Credentials, error) {
	var creds *Credentials
	err := c.store.Transaction(ctx, func(tx users.CredentialStore) error {
		user, err := tx.FindUserByExternalUsername(ctx, externalUsername, true)
		if errors.Is(err, users.ErrUserNotFound) {
			return ErrExternalAccountNotLinked
		}
		if err != nil {
			return err
		}
		// another process may have refreshed while we waited for the lock
		if cached, ok := c.cached(user); ok {
			metrics.ExternalTokenCache.WithLabelValues("hit").Inc()
			creds = cached
			return nil
		}

		metrics.ExternalTokenCache.WithLabelValues("miss").Inc()
		exchanged, err := c.provider.Exchange(ctx, externalUsername)
		if err != nil {
			metrics.ExternalTokenCache.WithLabelValues("error").Inc()
			return err
		}
		ciphertext, err := c.cipher.Encrypt(exchanged.AccessToken)
		if err != nil {
			return fmt.Errorf("encrypt external token: %w", err)
		}
		expiresAt := c.now().Add(c.ttl)
		if !exchanged.Expiry.IsZero() && exchanged.Expiry.Before(expiresAt) {
			expiresAt = exchanged.Expiry
		}
		if err := tx.UpdateExternalToken(ctx, user.ID, ciphertext, expiresAt); err != nil {
			return fmt.Errorf("store external token: %w", err)
		}

		creds = &Credentials{AccessToken: exchanged.AccessToken, InstanceURL: exchanged.InstanceURL}
		if creds.InstanceURL == "" {
			creds.InstanceURL = c.instanceURL
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return creds, nil
}

type CacheOption func(*TokenCache)

func WithClock(now func() time.Time) CacheOption {
	return func(c *TokenCache) {
		c.now = now
	}
}

func NewTokenCache(store users.CredentialStore, cipher *common.CacheCipher, provider Provider, cfg CacheConfig, opts ...CacheOption) *TokenCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = params.ExternalTokenCacheTTL
	}
	c := &TokenCache{
		store:       store,
		cipher:      cipher,
		provider:    provider,
		instanceURL: cfg.InstanceURL,
		ttl:         ttl,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
