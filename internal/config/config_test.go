package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
database:
  path: `+filepath.Join(t.TempDir(), "test.db")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "configs/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, 5*time.Minute, cfg.HoldTTL())
	assert.Equal(t, 30*time.Second, cfg.SweepInterval())
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, 20, cfg.Scoring.FarPenalty30d)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
  api_keys: [key-1, key-2]
database:
  path: `+filepath.Join(t.TempDir(), "test.db")+`
redis:
  address: localhost:6379
  db: 2
rate_limit:
  requests_per_window: 10
  window_seconds: 30
holds:
  default_ttl_seconds: 120
  sweep_interval_seconds: 10
  sweep_batch: 16
search:
  max_window_days: 45
  top_n: 3
scoring:
  far_penalty_30d: 25
  far_penalty_60d: 50
  evening_bonus: 12
  weekday_bonus: 6
  off_hours_penalty: 18
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"key-1", "key-2"}, cfg.Server.APIKeys)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2*time.Minute, cfg.HoldTTL())
	assert.Equal(t, 10*time.Second, cfg.SweepInterval())
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow())
	assert.Equal(t, 45, cfg.Search.MaxWindowDays)
	assert.Equal(t, 25, cfg.Scoring.FarPenalty30d)
	assert.Equal(t, 12, cfg.Scoring.EveningBonus)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret-from-env")
	path := writeConfig(t, `
server:
  api_keys: ["${TEST_API_KEY}"]
database:
  path: `+filepath.Join(t.TempDir(), "test.db")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"secret-from-env"}, cfg.Server.APIKeys)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
