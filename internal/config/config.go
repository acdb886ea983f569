package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	Derive DeriveConfig `yaml:"derive"`
	Retry  RetryConfig  `yaml:"retry"`
	Verbs  VerbsConfig  `yaml:"verbs"`
	Worker WorkerConfig `yaml:"worker"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DeriveConfig tunes progress derivation.
type DeriveConfig struct {
	MaxStatements               int `yaml:"max_statements"`
	IdleGapCeilingSeconds       int `yaml:"idle_gap_ceiling_seconds"`
	ExpectedStatementsPerCourse int `yaml:"expected_statements_per_course"`
	MinIntervalSeconds          int `yaml:"min_interval_seconds"`
}

// RetryConfig tunes the storage retry policy.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
}

// VerbsConfig tunes the verb registry.
type VerbsConfig struct {
	UsageCacheCap int `yaml:"usage_cache_cap"`
}

// WorkerConfig tunes the background derivation queue.
type WorkerConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// Load reads configuration from an optional YAML file and environment
// variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "coursetrace.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Derive: DeriveConfig{
			MaxStatements:               5000,
			IdleGapCeilingSeconds:       300,
			ExpectedStatementsPerCourse: 80,
			MinIntervalSeconds:          60,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMS: 1000,
		},
		Verbs: VerbsConfig{
			UsageCacheCap: 10000,
		},
		Worker: WorkerConfig{
			QueueSize: 256,
			Workers:   4,
		},
	}

	if path := os.Getenv("COURSETRACE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("COURSETRACE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("COURSETRACE_SERVER_PORT", &cfg.Server.Port); err != nil {
		return Config{}, err
	}
	if dbPath := os.Getenv("COURSETRACE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("COURSETRACE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if err := envInt("COURSETRACE_DERIVE_MAX_STATEMENTS", &cfg.Derive.MaxStatements); err != nil {
		return Config{}, err
	}
	if err := envInt("COURSETRACE_DERIVE_IDLE_GAP_SECONDS", &cfg.Derive.IdleGapCeilingSeconds); err != nil {
		return Config{}, err
	}
	if err := envInt("COURSETRACE_DERIVE_EXPECTED_STATEMENTS", &cfg.Derive.ExpectedStatementsPerCourse); err != nil {
		return Config{}, err
	}
	if err := envInt("COURSETRACE_DERIVE_MIN_INTERVAL_SECONDS", &cfg.Derive.MinIntervalSeconds); err != nil {
		return Config{}, err
	}
	if err := envInt("COURSETRACE_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts); err != nil {
		return Config{}, err
	}
	if err := envInt("COURSETRACE_RETRY_BASE_DELAY_MS", &cfg.Retry.BaseDelayMS); err != nil {
		return Config{}, err
	}
	if err := envInt("COURSETRACE_VERB_USAGE_CACHE_CAP", &cfg.Verbs.UsageCacheCap); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
