// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func TestNoOp(t *testing.T) {
	c := NewNoOp()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", Entry{Text: "x", Model: "m"}))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "no-op cache never stores")
	assert.NoError(t, c.Close())
}

func TestNewWithoutURLIsNoOp(t *testing.T) {
	c, err := New(context.Background(), types.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &NoOp{}, c)
}

func TestNewBadURL(t *testing.T) {
	_, err := New(context.Background(), types.CacheConfig{RedisURL: "ftp://nowhere"})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 is never a Redis server; the ping fails fast.
	_, err := NewRedis(ctx, "redis://127.0.0.1:1/0", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}

func TestKey(t *testing.T) {
	a := Key("prompt", "model")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("prompt", "model"))
	assert.NotEqual(t, a, Key("prompt", "other"))
	// Part boundaries matter.
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}
