package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lraide/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Engine   EngineConfig  `yaml:"engine"`
	Storage  StorageConfig `yaml:"storage"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

// EngineConfig tunes recomputation and the viewport.
type EngineConfig struct {
	FitTolerance  float64 `yaml:"fit_tolerance"`
	DomainPadding float64 `yaml:"domain_padding"`
	ZoomStep      float64 `yaml:"zoom_step"`
}

// StorageConfig selects where exported snapshots are kept. With no driver
// snapshots go to SnapshotDir on the local filesystem.
type StorageConfig struct {
	SnapshotDir string `yaml:"snapshot_dir"`
	DBDriver    string `yaml:"db_driver"`
	DBURL       string `yaml:"db_url"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", GinMode: "debug"},
		Engine:   EngineConfig{FitTolerance: 1e-9, DomainPadding: 0.1, ZoomStep: 1.2},
		Storage:  StorageConfig{SnapshotDir: "./snapshots"},
		Metrics:  MetricsConfig{Enabled: true},
		LogLevel: "INFO",
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file named by LRAIDE_CONFIG and finally the environment,
// which wins.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	config := Default()
	if path := os.Getenv("LRAIDE_CONFIG"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}
	applyEnv(config)

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadFile(path string, config *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to read config file %s", path))
	}
	if err := yaml.Unmarshal(raw, config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to parse config file %s", path))
	}
	return nil
}

func applyEnv(config *Config) {
	config.Server.Port = getEnvOrDefault("PORT", config.Server.Port)
	config.Server.GinMode = getEnvOrDefault("GIN_MODE", config.Server.GinMode)
	config.LogLevel = getEnvOrDefault("LOG_LEVEL", config.LogLevel)

	config.Engine.FitTolerance = getEnvFloatOrDefault("FIT_TOLERANCE", config.Engine.FitTolerance)
	config.Engine.DomainPadding = getEnvFloatOrDefault("DOMAIN_PADDING", config.Engine.DomainPadding)
	config.Engine.ZoomStep = getEnvFloatOrDefault("ZOOM_STEP", config.Engine.ZoomStep)

	config.Storage.SnapshotDir = getEnvOrDefault("SNAPSHOT_DIR", config.Storage.SnapshotDir)
	config.Storage.DBDriver = getEnvOrDefault("SNAPSHOT_DB_DRIVER", config.Storage.DBDriver)
	config.Storage.DBURL = getEnvOrDefault("SNAPSHOT_DB_URL", config.Storage.DBURL)

	config.Metrics.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", config.Metrics.Enabled)
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Engine.FitTolerance <= 0 {
		return errors.ConfigInvalid("FIT_TOLERANCE must be positive")
	}
	if config.Engine.DomainPadding <= 0 || config.Engine.DomainPadding >= 1 {
		return errors.ConfigInvalid("DOMAIN_PADDING must be in (0, 1)")
	}
	if config.Engine.ZoomStep <= 1 {
		return errors.ConfigInvalid("ZOOM_STEP must be greater than 1")
	}
	switch config.Storage.DBDriver {
	case "":
		if config.Storage.SnapshotDir == "" {
			return errors.ConfigInvalid("SNAPSHOT_DIR is required when no database is configured")
		}
	case "sqlite", "postgres":
		if config.Storage.DBURL == "" {
			return errors.ConfigInvalid("SNAPSHOT_DB_URL is required for driver " + config.Storage.DBDriver)
		}
	default:
		return errors.ConfigInvalid("SNAPSHOT_DB_DRIVER must be sqlite or postgres, got " + config.Storage.DBDriver)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
