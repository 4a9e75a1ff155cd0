package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CAVEGEN_CONFIG", "")
	t.Setenv("CAVEGEN_HTTP_PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "assets/sublevels", cfg.Sublevels)
	assert.Equal(t, 8080, cfg.Server.GetHTTPPort())
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 24*time.Hour, cfg.EventBus.RetentionDuration())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cavegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9090
sublevels_dir: /srv/sublevels
log:
  level: debug
storage:
  driver: redis
  redis_addr: localhost:6379
  redis_ttl: 2h
cache:
  enabled: true
  nats_url: nats://localhost:4222
eventbus:
  url: nats://localhost:4222
telemetry:
  enabled: true
  endpoint: collector:4318
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.GetHTTPPort())
	assert.Equal(t, "/srv/sublevels", cfg.Sublevels)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "logs", cfg.Log.Dir, "не указано в файле: остаётся дефолт")
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Storage.RedisTTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Hot.Driver)
	assert.Equal(t, "nats://localhost:4222", cfg.EventBus.URL)
	assert.Equal(t, "CAVEGEN", cfg.EventBus.Stream)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "cavegen", cfg.Telemetry.ServiceName)
}

func TestLoad_EnvPathAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: from-file\n"), 0o644))

	t.Setenv("CAVEGEN_CONFIG", path)
	t.Setenv("CAVEGEN_JWT_SECRET", "from-env")
	t.Setenv("CAVEGEN_STORAGE_DRIVER", "badger")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, "badger", cfg.Storage.Driver)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestGetPortWithEnvFallback(t *testing.T) {
	t.Setenv("CAVEGEN_TEST_PORT", "7000")
	assert.Equal(t, 9000, getPortWithEnvFallback(9000, "CAVEGEN_TEST_PORT", 1))
	assert.Equal(t, 7000, getPortWithEnvFallback(0, "CAVEGEN_TEST_PORT", 1))

	t.Setenv("CAVEGEN_TEST_PORT", "abc")
	assert.Equal(t, 1, getPortWithEnvFallback(0, "CAVEGEN_TEST_PORT", 1))
}
