package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "STORE_DRIVER", "MONGO_URI", "MONGO_DB", "MONGO_TRANSACTIONS", "SQLITE_PATH",
	"JWT_SECRET", "JWT_EXPIRY", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX",
	"LOG_LEVEL", "LOG_FORMAT", "ALERT_APPROACH_KM", "SERVICE_INTERVAL_KM", "RATE_LIMIT",
}

// clearEnv blanks the variables Load reads; empty values are ignored by Load.
func clearEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 2000, cfg.Alerts.ApproachWindow)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "checklist.yaml")
	yamlData := `
port: "9090"
store:
  driver: sqlite
  sqlite_path: /tmp/fleet.db
auth:
  jwt_expiry: 2h
alerts:
  approach_window: 1500
mqtt:
  broker: tcp://mosquitto:1883
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	clearEnv(t)
	t.Setenv("PORT", "7070")
	t.Setenv("ALERT_APPROACH_KM", "1000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/fleet.db", cfg.Store.SQLitePath)
	assert.Equal(t, 2*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, 1000, cfg.Alerts.ApproachWindow)
	assert.Equal(t, "tcp://mosquitto:1883", cfg.MQTT.Broker)
	assert.Equal(t, 10000, cfg.Alerts.ServiceInterval)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STORE_DRIVER=sqlite\nRATE_LIMIT=30\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("RATE_LIMIT")
	})

	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 30, cfg.RateLimit)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("bad driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		_, err := Load("")
		assert.ErrorContains(t, err, "unknown store driver")
	})

	t.Run("bad number", func(t *testing.T) {
		t.Setenv("SERVICE_INTERVAL_KM", "ten")
		_, err := Load("")
		assert.ErrorContains(t, err, "SERVICE_INTERVAL_KM")
	})

	t.Run("zero rate limit", func(t *testing.T) {
		t.Setenv("RATE_LIMIT", "0")
		_, err := Load("")
		assert.ErrorContains(t, err, "rate limit must be positive")
	})

	t.Run("negative rate limit", func(t *testing.T) {
		t.Setenv("RATE_LIMIT", "-10")
		_, err := Load("")
		assert.ErrorContains(t, err, "rate limit must be positive")
	})

	t.Run("huge service interval", func(t *testing.T) {
		t.Setenv("SERVICE_INTERVAL_KM", "2000000")
		_, err := Load("")
		assert.ErrorContains(t, err, "service interval")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("JWT_EXPIRY", "forever")
		_, err := Load("")
		assert.ErrorContains(t, err, "JWT_EXPIRY")
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parsing config file")
	})
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	cfg := Default()
	cfg.Log = LogConfig{Level: "debug", Format: "json"}
	cfg.ConfigureLogging()

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)
}
