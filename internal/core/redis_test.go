// AngelaMos | 2026
// redis_test.go

package core

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/tutoring-portal/internal/config"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedis(context.Background(), config.RedisConfig{
		URL:      "redis://" + mr.Addr() + "/0",
		PoolSize: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	assert.Equal(t, 3, r.Client.Options().PoolSize)
	assert.Equal(t, redisPoolTimeout, r.Client.Options().PoolTimeout)
	require.NoError(t, r.Ping(context.Background()))
	assert.NotNil(t, r.PoolStats())

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
}

func TestNewRedisErrors(t *testing.T) {
	_, err := NewRedis(context.Background(), config.RedisConfig{URL: "memcached://nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedis(context.Background(), config.RedisConfig{URL: "redis://" + addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
