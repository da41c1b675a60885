package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUILTS_CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, "quilts.db", cfg.DB.Path)
	require.Equal(t, "memory", cfg.Cache.Driver)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, 3, cfg.Usage.StatusWriteAttempts)
	require.Equal(t, 0, cfg.Analytics.RetrospectiveLookbackYears)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
db:
  path: /var/lib/quilts/data.db
cache:
  driver: none
  ttl: 30s
analytics:
  retrospective_lookback_years: 3
  timezone: UTC
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("QUILTS_CONFIG_PATH", path)
	t.Setenv("QUILTS_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "/var/lib/quilts/data.db", cfg.DB.Path)
	require.Equal(t, "none", cfg.Cache.Driver)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.Equal(t, 3, cfg.Analytics.RetrospectiveLookbackYears)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("QUILTS_SERVER_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DB.Driver = "postgres"
	require.Error(t, cfg.Validate(), "postgres without dsn")

	cfg.DB.DSN = "postgres://localhost/quilts?sslmode=disable"
	require.NoError(t, cfg.Validate())

	cfg.Cache.Driver = "redis"
	require.Error(t, cfg.Validate(), "redis without url")

	cfg = Default()
	cfg.Analytics.RetrospectiveLookbackYears = -1
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Analytics.Timezone = "Not/AZone"
	require.Error(t, cfg.Validate())
}
