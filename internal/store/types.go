package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage is a key-value backend. Values are JSON encoded. An expiresIn of
// zero keeps the key until it is deleted.
type Storage interface {
	SetNX(ctx context.Context, key string, val any, expiresIn time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Store[T any] interface {
	SetNX(ctx context.Context, key string, val T, expiresIn time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}
