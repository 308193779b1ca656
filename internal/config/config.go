// Package config provides configuration for the ledger binaries.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig
	Export   ExportConfig
	Worker   WorkerConfig
}

// DatabaseConfig represents the Postgres connection settings. When URL is
// empty the binaries fall back to the in-memory stores.
type DatabaseConfig struct {
	URL string
}

// ExportConfig represents the archive/snapshot destinations.
type ExportConfig struct {
	// GCSBucket receives JSON ledger snapshots.
	GCSBucket string

	// BigQuery archive destination for cleared transactions.
	ProjectID string
	DatasetID string
	TableID   string

	// CredentialsFile optionally overrides Application Default Credentials.
	CredentialsFile string
}

// WorkerConfig represents the recurrence worker settings.
type WorkerConfig struct {
	// SweepInterval is how often the worker enqueues a recurrence sweep.
	SweepInterval time.Duration

	// QueueSize is the sweep job queue buffer.
	QueueSize int
}

// Load loads configuration from environment variables.
// It automatically loads a .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	sweep, err := parseDurationEnv("SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	queueSize, err := parseIntEnv("SWEEP_QUEUE_SIZE", 16)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_QUEUE_SIZE: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Export: ExportConfig{
			GCSBucket:       os.Getenv("EXPORT_GCS_BUCKET"),
			ProjectID:       os.Getenv("EXPORT_BQ_PROJECT"),
			DatasetID:       getEnvOrDefault("EXPORT_BQ_DATASET", "ledger"),
			TableID:         getEnvOrDefault("EXPORT_BQ_TABLE", "transactions"),
			CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		},
		Worker: WorkerConfig{
			SweepInterval: sweep,
			QueueSize:     queueSize,
		},
	}

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
