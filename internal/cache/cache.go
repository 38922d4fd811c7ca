// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores model synthesis replies so an unchanged corpus does
// not pay for a second backend call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Entry is a cached synthesis reply.
type Entry struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// Cache holds synthesis replies by key.
type Cache interface {
	// Get returns nil on a miss.
	Get(ctx context.Context, key string) (*Entry, error)

	Set(ctx context.Context, key string, e Entry) error

	Close() error
}

// DefaultTTL applies when the configuration leaves the TTL at zero.
const DefaultTTL = 24 * time.Hour

// New returns a Redis cache when cfg names a URL and a no-op cache
// otherwise.
func New(ctx context.Context, cfg types.CacheConfig) (Cache, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return NewNoOp(), nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return NewRedis(ctx, cfg.RedisURL, ttl)
}

// Key derives a cache key from the parts that determine a reply.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
