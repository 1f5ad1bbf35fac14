package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/childcare-etl/internal/normalize"
)

// Config holds the full application configuration.
type Config struct {
	Input     InputConfig     `yaml:"input" mapstructure:"input"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// InputConfig names the source workbook and the layouts read from it.
type InputConfig struct {
	Path    string   `yaml:"path" mapstructure:"path"`
	Layouts []string `yaml:"layouts" mapstructure:"layouts"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Postgres pool limits; ignored for sqlite.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocodeConfig configures the TomTom geocoding client.
type GeocodeConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	Cache       bool    `yaml:"cache" mapstructure:"cache"`
}

// NormalizeConfig controls field coalescing.
type NormalizeConfig struct {
	// Presence is "truthy" or "non_null".
	Presence string `yaml:"presence" mapstructure:"presence"`
	// LayoutsFile overrides the embedded layout tables.
	LayoutsFile string `yaml:"layouts_file" mapstructure:"layouts_file"`
}

// ReconcileConfig controls change detection.
type ReconcileConfig struct {
	FingerprintTimestamp bool `yaml:"fingerprint_timestamp" mapstructure:"fingerprint_timestamp"`
}

// MetricsConfig configures the Prometheus textfile export. An empty path
// disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env values never override variables already set.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHILDCARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("geocode.api_key", "CHILDCARE_GEOCODE_API_KEY", "api_key"); err != nil {
		return nil, eris.Wrap(err, "config: bind api key")
	}

	// Defaults
	v.SetDefault("input.path", "Technical Exercise Data.xlsx")
	v.SetDefault("input.layouts", []string{"source1", "source2", "source3"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "child_care_data.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("geocode.base_url", "https://api.tomtom.com")
	v.SetDefault("geocode.rate_limit", 5.0)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.cache", false)
	v.SetDefault("normalize.presence", "truthy")
	v.SetDefault("normalize.layouts_file", "")
	v.SetDefault("reconcile.fingerprint_timestamp", false)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "run", "migrate"
// or "status".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Store.MaxConns < 0 || c.Store.MinConns < 0 {
		problems = append(problems, "store pool limits must not be negative")
	} else if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
		problems = append(problems, "store.min_conns must not exceed store.max_conns")
	}

	switch mode {
	case "migrate", "status":
	case "run":
		if c.Input.Path == "" {
			problems = append(problems, "input.path is required")
		}
		if len(c.Input.Layouts) == 0 {
			problems = append(problems, "input.layouts must name at least one layout")
		}
		if c.Geocode.APIKey == "" {
			problems = append(problems, "geocode.api_key is required (or set api_key)")
		}
		if c.Geocode.TimeoutSecs <= 0 {
			problems = append(problems, "geocode.timeout_secs must be positive")
		}
		if c.Geocode.MaxAttempts < 1 {
			problems = append(problems, "geocode.max_attempts must be at least 1")
		}
		if _, err := normalize.ParsePresence(c.Normalize.Presence); err != nil {
			problems = append(problems, "normalize.presence must be truthy or non_null")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
