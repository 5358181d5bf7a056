package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound marks a cache miss, as distinct from a backend failure.
var ErrNotFound = errors.New("cache: key not found")

// Backend is a generic key-value store with per-entry TTL. It carries no
// domain knowledge; the ResultCache layers fingerprints and invalidation
// on top.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
