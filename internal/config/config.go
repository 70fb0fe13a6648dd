// Package config loads the host configuration from a YAML file, a .env
// file and JOBENGINE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xraph/jobengine"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JOBENGINE_"

// Load builds the configuration. Missing files are skipped; an empty path
// skips that source.
func Load(envFile, yamlFile string) (jobengine.Config, error) {
	cfg := jobengine.DefaultConfig()

	if yamlFile != "" {
		b, err := os.ReadFile(yamlFile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", yamlFile, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read %s: %w", yamlFile, err)
		}
	}

	// godotenv never overrides variables already set in the environment.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *jobengine.Config) error {
	cfg.DefaultQueue = getEnv("DEFAULT_QUEUE", cfg.DefaultQueue)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v := getEnv("QUEUES", ""); v != "" {
		var queues []string
		for q := range strings.SplitSeq(v, ",") {
			if q = strings.TrimSpace(q); q != "" {
				queues = append(queues, q)
			}
		}
		cfg.Queues = queues
	}

	var err error
	if cfg.Concurrency, err = getEnvAsInt("CONCURRENCY", cfg.Concurrency); err != nil {
		return err
	}
	if cfg.JobTimeout, err = getEnvAsDuration("JOB_TIMEOUT", cfg.JobTimeout); err != nil {
		return err
	}
	if cfg.ShutdownTimeout, err = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func Validate(cfg jobengine.Config) error {
	if cfg.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.JobTimeout < 0 || cfg.ShutdownTimeout < 0 {
		return errors.New("config: timeouts must not be negative")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: log format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}

// NewLogger returns the logger described by cfg, writing to w.
func NewLogger(cfg jobengine.Config, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

// getEnv returns the prefixed variable, or defaultValue when it is unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return value, nil
}
