package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapping-viewer/internal/common/config"
)

func TestRedisClient_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(config.RedisConfig{Enabled: true, Address: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "campaign:a", []byte(`{"id":"a"}`), time.Minute))

	got, err := c.GetBytes(ctx, "campaign:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(got))

	mr.FastForward(2 * time.Minute)
	_, err = c.GetBytes(ctx, "campaign:a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Del(ctx, "campaign:a"))
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{Enabled: true})
	assert.Error(t, err)
}
