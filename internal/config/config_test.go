package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, OTPDriverMemory, cfg.OTP.Driver)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL())
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "Central", cfg.Issues.DefaultAnonymousZone)
	assert.Equal(t, 1_000_000, cfg.Blob.MaxBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MONGO")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("OTP_DRIVER", "redis")
	t.Setenv("OTP_TTL_MINUTES", "5")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Equal(t, OTPDriverRedis, cfg.OTP.Driver)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL())
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}

func TestRedisNodes(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "redis-a:6379, redis-b:6379,")
	t.Setenv("REDIS_DIAL_TIMEOUT_SECONDS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.Redis.Addrs())
	assert.Equal(t, 2*time.Second, cfg.Redis.DialTimeout())
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, RedisConfig{}.DialTimeout())
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestGridFSNeedsMongo(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BLOB_DRIVER", "gridfs")
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	require.Error(t, err)
}

func TestBootstrapAdminNeedsPassword(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@example.com")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "changeme")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Bootstrap.Enabled())
	assert.Equal(t, "Administrator", cfg.Bootstrap.AdminName)
}
