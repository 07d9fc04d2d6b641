// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// SeedInstruments adds the bundled B3 catalogue on startup.
	SeedInstruments bool

	// Market data
	QuoteCacheTTL          time.Duration
	PriceCollectorInterval time.Duration
	AlertCheckSchedule     string  // cron expression with seconds field
	CDIAnnualRate          float64 // percent per year

	Backup *BackupConfig
}

// BackupConfig configures uploads of database snapshots to S3-compatible storage.
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for R2/MinIO, empty for AWS
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STOCKWATCH_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                absDataDir,
		LogLevel:               getEnv("STOCKWATCH_LOG_LEVEL", "info"),
		Port:                   getEnvAsInt("STOCKWATCH_PORT", 8000),
		DevMode:                getEnvAsBool("STOCKWATCH_DEV_MODE", false),
		SeedInstruments:        getEnvAsBool("STOCKWATCH_SEED_INSTRUMENTS", true),
		QuoteCacheTTL:          getEnvAsDuration("STOCKWATCH_QUOTE_CACHE_TTL", 5*time.Minute),
		PriceCollectorInterval: getEnvAsDuration("STOCKWATCH_PRICE_COLLECTOR_INTERVAL", 15*time.Minute),
		AlertCheckSchedule:     getEnv("STOCKWATCH_ALERT_CHECK_SCHEDULE", "0 */5 10-18 * * 1-5"),
		CDIAnnualRate:          getEnvAsFloat("STOCKWATCH_CDI_ANNUAL_RATE", 13.25),
		Backup:                 loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.QuoteCacheTTL <= 0 {
		return fmt.Errorf("quote cache TTL must be positive, got %s", c.QuoteCacheTTL)
	}
	if c.PriceCollectorInterval < time.Minute {
		return fmt.Errorf("price collector interval must be at least 1m, got %s", c.PriceCollectorInterval)
	}
	if c.CDIAnnualRate < 0 {
		return fmt.Errorf("CDI annual rate cannot be negative: %v", c.CDIAnnualRate)
	}
	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup enabled but STOCKWATCH_BACKUP_BUCKET is empty")
		}
		if c.Backup.RetentionDays < 1 {
			return fmt.Errorf("backup retention must be at least 1 day")
		}
	}
	return nil
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("STOCKWATCH_BACKUP_ENABLED", false),
		Bucket:          getEnv("STOCKWATCH_BACKUP_BUCKET", ""),
		Region:          getEnv("STOCKWATCH_BACKUP_REGION", "auto"),
		Endpoint:        getEnv("STOCKWATCH_BACKUP_ENDPOINT", ""),
		AccessKeyID:     getEnv("STOCKWATCH_BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("STOCKWATCH_BACKUP_SECRET_ACCESS_KEY", ""),
		Schedule:        getEnv("STOCKWATCH_BACKUP_SCHEDULE", "0 30 3 * * *"),
		RetentionDays:   getEnvAsInt("STOCKWATCH_BACKUP_RETENTION_DAYS", 30),
	}
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
