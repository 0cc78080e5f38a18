package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9001
mysql:
  host: db.internal
  database: credit
ledger:
  lock_ttl: 5s
  cascade_delete: true
security:
  legacy_token_pin_check: false
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTTL)
	assert.True(t, cfg.Ledger.CascadeDelete)
	assert.False(t, cfg.Security.LegacyTokenPinCheck)
	assert.Equal(t, "credit_events", cfg.Kafka.Topic.CreditEvents)
	assert.Equal(t, "root:@tcp(db.internal:3306)/credit?charset=utf8mb4&parseTime=True&loc=UTC", cfg.MySQL.DSN())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "credit.log", cfg.Log.File)
	assert.True(t, cfg.Security.LegacyTokenPinCheck)
	assert.Equal(t, 30, cfg.Ledger.LockMaxRetries)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("FNORD_SERVER_PORT", "9100")
	t.Setenv("FNORD_REDIS_HOST", "cache")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "cache", cfg.Redis.Host)
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [port"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.Ledger.LockRetryInterval)
}
