package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	FileEnv, "CART_API_URL", "CART_REQUEST_TIMEOUT", "CART_AUTH_TOKEN", "CART_AUTH_TOKEN_FILE",
	"BACKUP_BACKEND", "BACKUP_KEY", "REDIS_ADDR", "MYSQL_DSN", "POSTGRES_DSN", "SQLITE_PATH",
	"NOTIFICATION_TTL", "HTTP_ADDR", "GRPC_ADDR", "RABBITMQ_URL", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, BackendMemory, cfg.BackupBackend)
	assert.Empty(t, cfg.RabbitMQURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CART_API_URL", "https://shop.example.com/carrito/api")
	t.Setenv("CART_REQUEST_TIMEOUT", "3s")
	t.Setenv("BACKUP_BACKEND", "SQLite")
	t.Setenv("NOTIFICATION_TTL", "not-a-duration")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/carrito/api", cfg.CartAPIURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, BackendSQLite, cfg.BackupBackend)
	assert.Equal(t, 5*time.Second, cfg.NotificationTTL, "invalid duration keeps the default")
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cartsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cart_api_url: http://file.example/api
request_timeout: 2s
backup_backend: redis
redis_addr: redis:6379
http_addr: ":9090"
`), 0o600))
	t.Setenv(FileEnv, path)
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://file.example/api", cfg.CartAPIURL)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, BackendRedis, cfg.BackupBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "environment wins over the file")
	assert.Equal(t, ":50051", cfg.GRPCAddr)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(FileEnv, filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cart_api_url: [unterminated"), 0o600))
		t.Setenv(FileEnv, path)
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BACKUP_BACKEND", "etcd")
		_, err := Load()
		assert.ErrorContains(t, err, "etcd")
	})
}
