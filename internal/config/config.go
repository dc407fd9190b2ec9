// Package config loads application settings from a .env file, an optional
// YAML file and PARKS_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ngmaloney/park-terminal/internal/database"
)

const (
	MinTimeout     = 10 * time.Second
	MaxTimeout     = 15 * time.Second
	DefaultTimeout = 12 * time.Second
)

// Config contains application configuration.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Token          string        `yaml:"token"`
	StorageBaseURL string        `yaml:"storage_base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	DBPath         string        `yaml:"db_path"`
	LogPath        string        `yaml:"log_path"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Timeout:     DefaultTimeout,
		MaxAttempts: 3,
		DBPath:      database.DBPath(),
	}
}

// Load reads configuration from .env, the YAML file at path (if non-empty)
// and environment variables.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	setString("PARKS_API_URL", &cfg.BaseURL)
	setString("PARKS_API_KEY", &cfg.APIKey)
	setString("PARKS_API_TOKEN", &cfg.Token)
	setString("PARKS_STORAGE_URL", &cfg.StorageBaseURL)
	setString("PARKS_DB_PATH", &cfg.DBPath)
	setString("PARKS_LOG_PATH", &cfg.LogPath)

	if v := os.Getenv("PARKS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PARKS_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	if v := os.Getenv("PARKS_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PARKS_MAX_ATTEMPTS: %w", err)
		}
		cfg.MaxAttempts = n
	}

	return nil
}

// Validate checks that the configuration can be used to reach the API
func (c Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("PARKS_API_URL is required"))
	}
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		errs = append(errs, fmt.Errorf("timeout must be between %s and %s, got %s", MinTimeout, MaxTimeout, c.Timeout))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	return errors.Join(errs...)
}
