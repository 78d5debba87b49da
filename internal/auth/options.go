package auth

import (
	"time"

	"github.com/khanghh/plantgate/internal/store"
	"github.com/khanghh/plantgate/params"
)

type options struct {
	now             func() time.Time
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	rotation        store.Storage
}

type Option func(*options)

// WithClock overrides the wall clock used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTokenTTL sets the default token lifetimes. Non-positive values keep
// the defaults.
func WithTokenTTL(accessTokenTTL, refreshTokenTTL time.Duration) Option {
	return func(o *options) {
		if accessTokenTTL > 0 {
			o.accessTokenTTL = accessTokenTTL
		}
		if refreshTokenTTL > 0 {
			o.refreshTokenTTL = refreshTokenTTL
		}
	}
}

// WithRefreshTokenRotation makes refresh tokens single use. Consumed token ids
// are remembered in storage until the token expires.
func WithRefreshTokenRotation(storage store.Storage) Option {
	return func(o *options) {
		o.rotation = storage
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:             time.Now,
		accessTokenTTL:  params.AccessTokenExpiration,
		refreshTokenTTL: params.RefreshTokenExpiration,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
