package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/sagalens/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "sagalens.yaml", `
name: storefront
except: [watchIdle, heartbeat]
buffer_limit: 50
transport: redis
history: redis
redis:
  addr: redis:6379
  codec: msgpack
  ttl: 10m
mcp:
  enabled: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "storefront", cfg.Name)
	assert.Equal(t, []string{"watchIdle", "heartbeat"}, cfg.Except)
	assert.Equal(t, 50, cfg.BufferLimit)
	assert.Equal(t, config.TransportRedis, cfg.Transport)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "msgpack", cfg.Redis.Codec)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "sagalens:messages", cfg.Redis.Channel, "unset keys keep their default")
	assert.True(t, cfg.MCP.Enabled)
	assert.Equal(t, 8081, cfg.MCP.Port)
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "sagalens.yaml", "buffer_limit: 50\n")
	t.Setenv("SAGALENS_BUFFER_LIMIT", "7")
	t.Setenv("SAGALENS_EXCEPT", "a, b,,c")
	t.Setenv("SAGALENS_REDIS__ADDR", "cache:6380")
	t.Setenv("SAGALENS_MCP__ENABLED", "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.BufferLimit)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Except)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.True(t, cfg.MCP.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "bad.yaml", "buffer_limit: [\n"))
		assert.Error(t, err)
	})

	t.Run("unknown enums", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "bad.yaml", "transport: carrier-pigeon\nhistory: disk\nlog_level: loud\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "carrier-pigeon")
		assert.Contains(t, err.Error(), "disk")
		assert.Contains(t, err.Error(), "loud")
	})
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "SAGALENS_TEST_DOTENV=from-file\n")
	t.Setenv("SAGALENS_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SAGALENS_TEST_DOTENV"))

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("SAGALENS_TEST_DOTENV"))
	require.NoError(t, os.Unsetenv("SAGALENS_TEST_DOTENV"))
}

func TestConfig_Logger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "debug"
	assert.NotNil(t, cfg.Logger())
}
