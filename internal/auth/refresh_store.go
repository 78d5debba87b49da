package auth

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/plantgate/internal/store"
	"github.com/khanghh/plantgate/params"
)

type usedRefreshToken struct {
	Subject string    `json:"sub"`
	UsedAt  time.Time `json:"usedAt"`
}

// refreshTokenStore remembers consumed refresh token ids.
type refreshTokenStore struct {
	used store.Store[usedRefreshToken]
}

// consume marks jti as used. It returns false when jti was already used.
func (s *refreshTokenStore) consume(ctx context.Context, jti, subject string, now, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.used.SetNX(ctx, jti, usedRefreshToken{Subject: subject, UsedAt: now}, ttl)
}

// release forgets jti so a refresh that failed after consume can be retried.
func (s *refreshTokenStore) release(ctx context.Context, jti string) error {
	err := s.used.Delete(ctx, jti)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func newRefreshTokenStore(storage store.Storage) *refreshTokenStore {
	return &refreshTokenStore{
		used: store.New[usedRefreshToken](storage, params.RefreshTokenKeyPrefix),
	}
}
