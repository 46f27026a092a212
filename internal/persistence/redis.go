package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/config"
)

// Redis holds the shared client behind OTP tickets and request throttling.
// A single address yields a plain client; several yield a cluster client.
type Redis struct {
	Client redis.UniversalClient
	addrs  []string
}

// NewRedis builds the client and checks it once. An unreachable server is
// logged, not fatal; readiness reports it until the connection recovers.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	addrs := cfg.Addrs()
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout(),
	})
	r := &Redis{Client: client, addrs: addrs}

	if err := r.Ping(ctx); err != nil {
		logger.Warn("redis unreachable", zap.Strings("addrs", addrs), zap.Error(err))
	} else {
		logger.Info("redis connected", zap.Strings("addrs", addrs), zap.Int("pool_size", cfg.PoolSize))
	}
	return r
}

// Addrs lists the configured nodes.
func (r *Redis) Addrs() []string {
	if r == nil {
		return nil
	}
	return r.addrs
}

func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping backs the readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
