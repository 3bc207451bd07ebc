// Package cache stores search responses keyed by query parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache is a byte-value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Key joins components and appends a short hash so long queries stay bounded.
func Key(prefix string, components ...string) string {
	joined := strings.Join(components, "\x00")
	h := sha256.Sum256([]byte(joined))
	return prefix + ":" + hex.EncodeToString(h[:])[:24]
}
