// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the run archive (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	Simulation     SimulationConfig
	Retention      RetentionConfig
	RequestTimeout time.Duration
}

// SimulationConfig bounds the work a single request may ask for
type SimulationConfig struct {
	Workers    int // 0 uses one worker per CPU
	MaxTrials  int
	MaxHorizon int
}

// RetentionConfig controls archived run pruning
type RetentionConfig struct {
	Days     int    // 0 keeps runs forever
	Schedule string // six-field cron expression, seconds first
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("MONTECARLO_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Simulation: SimulationConfig{
			Workers:    getEnvAsInt("SIM_WORKERS", 0),
			MaxTrials:  getEnvAsInt("SIM_MAX_TRIALS", 100000),
			MaxHorizon: getEnvAsInt("SIM_MAX_HORIZON", 200),
		},
		Retention: RetentionConfig{
			Days:     getEnvAsInt("RUN_RETENTION_DAYS", 30),
			Schedule: getEnv("RUN_RETENTION_SCHEDULE", "0 0 3 * * *"),
		},
		RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("SIM_WORKERS must not be negative, got %d", c.Simulation.Workers)
	}
	if c.Simulation.MaxTrials <= 0 {
		return fmt.Errorf("SIM_MAX_TRIALS must be positive, got %d", c.Simulation.MaxTrials)
	}
	if c.Simulation.MaxHorizon < 0 {
		return fmt.Errorf("SIM_MAX_HORIZON must not be negative, got %d", c.Simulation.MaxHorizon)
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("RUN_RETENTION_DAYS must not be negative, got %d", c.Retention.Days)
	}
	if _, err := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	).Parse(c.Retention.Schedule); err != nil {
		return fmt.Errorf("RUN_RETENTION_SCHEDULE is not a valid schedule: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// RunsDBPath returns the path of the run archive database
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
