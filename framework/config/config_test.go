package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/framework/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAMLTree(t *testing.T) {
	path := writeFile(t, "config.yml", `
bootstrap:
  port: 9090
mysql:
  host: localhost
  pool: 4
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.String("bootstrap.port", "8080"))
	assert.Equal(t, "localhost", cfg.String("mysql.host", ""))
	assert.Equal(t, 4, cfg.Int("mysql.pool", 0))
	assert.Equal(t, 99, cfg.Int("mysql.missing", 99))
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoad_EmptyPathIsEmptyTree(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	_, ok := cfg.Get("anything")
	assert.False(t, ok)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "MYSQL_HOST", config.EnvKey("mysql.host"))
	assert.Equal(t, "BOOTSTRAP_PORT", config.EnvKey("bootstrap.port"))
	assert.Equal(t, "REDIS_POOL_SIZE", config.EnvKey("redis.pool_size"))
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("MYSQL_HOST", "db.internal")
	path := writeFile(t, "config.yml", `
mysql:
  host: localhost
  pool: 4
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.String("mysql.host", ""))
	// Untouched siblings keep their file values.
	assert.Equal(t, 4, cfg.Int("mysql.pool", 0))
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("LOGGER_LEVEL=warn\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LOGGER_LEVEL") })

	path := writeFile(t, "config.yml", `
logger:
  level: info
`)
	cfg, err := config.Load(path, env)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.String("logger.level", ""))
}

type redisSection struct {
	Host string `yaml:"host" validate:"required"`
	Pool int    `yaml:"pool" validate:"gte=1"`
}

func TestSection_DecodeAndValidate(t *testing.T) {
	cfg := config.New(map[string]any{
		"redis": map[string]any{"host": "cache.internal", "pool": 8},
	})

	var rc redisSection
	require.NoError(t, cfg.Section("redis", &rc))
	assert.Equal(t, "cache.internal", rc.Host)
	assert.Equal(t, 8, rc.Pool)
}

func TestSection_ValidationFailure(t *testing.T) {
	cfg := config.New(map[string]any{
		"redis": map[string]any{"pool": 0},
	})

	var rc redisSection
	err := cfg.Section("redis", &rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `section "redis" invalid`)
}

func TestBool(t *testing.T) {
	cfg := config.New(map[string]any{
		"feature": map[string]any{"on": true, "txt": "false"},
	})
	assert.True(t, cfg.Bool("feature.on", false))
	assert.False(t, cfg.Bool("feature.txt", true))
	assert.True(t, cfg.Bool("feature.missing", true))
}
