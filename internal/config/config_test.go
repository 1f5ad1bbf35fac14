package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp changes to a fresh temp dir so no config.yaml or .env is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	unsetEnv(t, "api_key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Technical Exercise Data.xlsx", cfg.Input.Path)
	assert.Equal(t, []string{"source1", "source2", "source3"}, cfg.Input.Layouts)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "child_care_data.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
	assert.Equal(t, int32(1), cfg.Store.MinConns)
	assert.Equal(t, "https://api.tomtom.com", cfg.Geocode.BaseURL)
	assert.Empty(t, cfg.Geocode.APIKey)
	assert.InDelta(t, 5.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, 30, cfg.Geocode.TimeoutSecs)
	assert.Equal(t, 3, cfg.Geocode.MaxAttempts)
	assert.False(t, cfg.Geocode.Cache)
	assert.Equal(t, "truthy", cfg.Normalize.Presence)
	assert.Empty(t, cfg.Normalize.LayoutsFile)
	assert.False(t, cfg.Reconcile.FingerprintTimestamp)
	assert.Empty(t, cfg.Metrics.Textfile)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
input:
  path: providers.xlsx
  layouts: [source2]
store:
  driver: postgres
  database_url: postgres://localhost/childcare
geocode:
  cache: true
  max_attempts: 5
normalize:
  presence: non_null
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "providers.xlsx", cfg.Input.Path)
	assert.Equal(t, []string{"source2"}, cfg.Input.Layouts)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/childcare", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Geocode.Cache)
	assert.Equal(t, 5, cfg.Geocode.MaxAttempts)
	assert.Equal(t, "non_null", cfg.Normalize.Presence)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Geocode.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("CHILDCARE_STORE_DRIVER", "postgres")
	t.Setenv("CHILDCARE_LOG_LEVEL", "warn")
	t.Setenv("CHILDCARE_RECONCILE_FINGERPRINT_TIMESTAMP", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Reconcile.FingerprintTimestamp)
}

func TestLoadAPIKeyFromBareEnv(t *testing.T) {
	chdirTemp(t)
	unsetEnv(t, "CHILDCARE_GEOCODE_API_KEY")
	t.Setenv("api_key", "bare-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bare-key", cfg.Geocode.APIKey)
}

func TestLoadAPIKeyPrefixedEnvWins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("api_key", "bare-key")
	t.Setenv("CHILDCARE_GEOCODE_API_KEY", "prefixed-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed-key", cfg.Geocode.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	unsetEnv(t, "CHILDCARE_GEOCODE_API_KEY")
	unsetEnv(t, "api_key")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("api_key=from-dotenv\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Geocode.APIKey)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation in every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Input.Path = "data.xlsx"
	cfg.Input.Layouts = []string{"source1"}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "child_care_data.db"
	cfg.Geocode.APIKey = "key"
	cfg.Geocode.TimeoutSecs = 30
	cfg.Geocode.MaxAttempts = 3
	cfg.Normalize.Presence = "truthy"
	return cfg
}

func TestValidateRun_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Input.Path = ""
	cfg.Geocode.APIKey = ""
	cfg.Geocode.MaxAttempts = 0

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.path is required")
	assert.Contains(t, err.Error(), "geocode.api_key is required")
	assert.Contains(t, err.Error(), "geocode.max_attempts must be at least 1")
}

func TestValidateRun_BadPresence(t *testing.T) {
	cfg := validDefaults()
	cfg.Normalize.Presence = "sometimes"

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize.presence")
}

func TestValidateMigrate_IgnoresRunSettings(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.APIKey = ""
	cfg.Input.Path = ""

	assert.NoError(t, cfg.Validate("migrate"))
	assert.NoError(t, cfg.Validate("status"))
}

func TestValidate_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidate_PoolLimits(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.MaxConns = 2
	cfg.Store.MinConns = 3

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.min_conns must not exceed store.max_conns")

	cfg.Store.MinConns = -1
	err = cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be negative")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
