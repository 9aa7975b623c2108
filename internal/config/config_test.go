package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fatalError string

func captureFatal(t *testing.T) {
	t.Helper()
	orig := fatalf
	fatalf = func(format string, args ...interface{}) { panic(fatalError(fmt.Sprintf(format, args...))) }
	t.Cleanup(func() { fatalf = orig })
}

func TestLoad_MemoryDefaults(t *testing.T) {
	captureFatal(t)
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORAGE", "memory")
	t.Setenv("RABBITMQ_URL", "off")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Empty(t, cfg.RabbitURL)
	assert.Equal(t, time.Minute, cfg.LockMinTTL)
	assert.Equal(t, 120*time.Minute, cfg.LockMaxTTL)
	assert.True(t, cfg.LockOwnerOnly)
	assert.Equal(t, 50, cfg.SnapshotListLimit)
}

func TestLoad_MySQLRequiresDatabase(t *testing.T) {
	captureFatal(t)
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORAGE", "mysql")
	t.Setenv("DB_USER", "")

	assert.PanicsWithValue(t, fatalError("missing required env var: DB_USER"), func() { Load() })

	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "seating")
	cfg := Load()
	assert.Equal(t, "db", cfg.DBHost)
}

func TestLoad_RejectsBadLockBounds(t *testing.T) {
	captureFatal(t)
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORAGE", "memory")
	t.Setenv("LOCK_MIN_TTL", "10m")
	t.Setenv("LOCK_MAX_TTL", "5m")
	assert.Panics(t, func() { Load() })
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SEATING_TEST_A=from-file\nSEATING_TEST_B=from-file\n"), 0o600))

	t.Setenv("SEATING_TEST_A", "from-env")
	os.Unsetenv("SEATING_TEST_B")
	t.Cleanup(func() { os.Unsetenv("SEATING_TEST_B") })

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "from-env", os.Getenv("SEATING_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("SEATING_TEST_B"))
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.Equal(t, "user_route_query", cfg.KeyStrategy)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_DB", "3")
	opts, err := RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Nil(t, opts.TLSConfig)

	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "true")
	opts, err = RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, "redis.internal", opts.TLSConfig.ServerName)
}

func TestRedisOptions_URL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://:pw@cache.local:6390/2")
	opts, err := RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache.local:6390", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	t.Setenv("REDIS_URL", "http://nope")
	_, err = RedisOptions()
	assert.Error(t, err)
}
