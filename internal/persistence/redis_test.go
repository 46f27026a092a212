package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/config"
)

func TestNewRedisReachesServer(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), PoolSize: 2}, zap.NewNop())
	t.Cleanup(r.Close)

	require.NoError(t, r.Ping(context.Background()))
	assert.Equal(t, []string{mr.Addr()}, r.Addrs())

	require.NoError(t, r.Client.Set(context.Background(), "otp:ticket:t-1", "x", 0).Err())
	assert.True(t, mr.Exists("otp:ticket:t-1"))
}

func TestRedisPingReportsOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	t.Cleanup(r.Close)

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
}

func TestNilRedisPing(t *testing.T) {
	var r *Redis
	assert.Error(t, r.Ping(context.Background()))
	assert.Nil(t, r.Addrs())
	r.Close()
}
