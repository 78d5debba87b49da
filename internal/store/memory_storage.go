package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/storage/memory/v2"
)

// MemoryStorage keeps values in process memory. It is used when no Redis
// server is configured; state is not shared between replicas.
type MemoryStorage struct {
	mu      sync.Mutex // guards SetNX and Delete read-then-write
	backend *memory.Storage
}

func (s *MemoryStorage) SetNX(ctx context.Context, key string, val any, expiresIn time.Duration) (bool, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.backend.Get(key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	return true, s.backend.Set(key, data, expiresIn)
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.backend.Get(key)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	return s.backend.Delete(key)
}

func (s *MemoryStorage) Close() error {
	return s.backend.Close()
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		backend: memory.New(memory.Config{GCInterval: 10 * time.Second}),
	}
}
