package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultListensOnAllInterfaces(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, int64(5*1024*1024), cfg.Media.MaxFileSize)
	assert.Empty(t, cfg.Database.DSN)
	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MICROBLOG_PORT", "9001")
	t.Setenv("MICROBLOG_DATABASE_URL", "postgres://admin:password@db:5432/microblog_db?sslmode=disable")
	t.Setenv("MICROBLOG_REDIS_TTL", "90s")
	t.Setenv("MICROBLOG_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Contains(t, cfg.Database.DSN, "microblog_db")
	assert.Equal(t, 90*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadLayersFileUnderEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 8100
media:
  uploads_dir: /data/uploads
  orphan_ttl: 2h
`), 0o600))
	t.Setenv("MICROBLOG_CONFIG_FILE", path)
	t.Setenv("MICROBLOG_PORT", "8200")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8200, cfg.Server.Port)
	assert.Equal(t, "/data/uploads", cfg.Media.UploadsDir)
	assert.Equal(t, 2*time.Hour, cfg.Media.OrphanTTL)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MICROBLOG_RATE_LIMIT_RPS=7\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MICROBLOG_RATE_LIMIT_RPS") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimit.RPS)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Server.Host = " " }},
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too big", func(c *Config) { c.Server.Port = 70000 }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"file size", func(c *Config) { c.Media.MaxFileSize = 0 }},
		{"uploads dir", func(c *Config) { c.Media.UploadsDir = "" }},
		{"negative rps", func(c *Config) { c.RateLimit.RPS = -1 }},
		{"negative pool", func(c *Config) { c.Database.MaxOpenConns = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
