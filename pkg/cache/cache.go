// Package cache provides the keyed read-through cache backing content and
// profile queries. Entries carry a TTL and are invalidated explicitly after
// mutations, so reads between mutations never refetch.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

const keyNamespace = "storefront"

// Cache is the backend-agnostic surface. Values are opaque JSON blobs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

// Key builds a namespaced cache key from parts, skipping empty segments.
func Key(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
