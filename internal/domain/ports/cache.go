package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key has no cached value.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a small string cache used for gateway balance lookups and static
// reference data. A nil Cache dependency disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
