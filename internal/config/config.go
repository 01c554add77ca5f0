// Package config loads herdbook settings from HERDBOOK_* environment
// variables and configures the process logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds every runtime setting.
type Config struct {
	LogLevel  slog.Level
	LogFormat string

	// Storage
	StorageDriver string
	SQLitePath    string
	PostgresDSN   string

	// Litter archive; BlobDriver "none" disables archiving.
	BlobDriver      string
	BlobFSRoot      string
	BlobS3Bucket    string
	BlobS3Region    string
	BlobS3Endpoint  string
	BlobS3PathStyle bool

	SpeciesFile string

	RelationshipCacheSize int
	RelationshipCacheTTL  time.Duration

	// RandomSeed fixes offspring draws when non-zero.
	RandomSeed uint64
}

// Load reads the configuration from the environment, applying defaults and
// rejecting malformed values.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("HERDBOOK_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("HERDBOOK_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("HERDBOOK_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("HERDBOOK_LOG_FORMAT: unsupported format %q, expected json or text", cfg.LogFormat)
	}

	cfg.StorageDriver = getEnvDefault("HERDBOOK_STORAGE_DRIVER", "sqlite")
	switch cfg.StorageDriver {
	case "memory", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("HERDBOOK_STORAGE_DRIVER: unsupported driver %q", cfg.StorageDriver)
	}
	cfg.SQLitePath = getEnvDefault("HERDBOOK_SQLITE_PATH", "herdbook.db")
	cfg.PostgresDSN = os.Getenv("HERDBOOK_POSTGRES_DSN")

	cfg.BlobDriver = getEnvDefault("HERDBOOK_BLOB_DRIVER", "none")
	switch cfg.BlobDriver {
	case "none", "fs", "memory", "s3":
	default:
		return nil, fmt.Errorf("HERDBOOK_BLOB_DRIVER: unsupported driver %q", cfg.BlobDriver)
	}
	cfg.BlobFSRoot = getEnvDefault("HERDBOOK_BLOB_FS_ROOT", "./blobdata")
	cfg.BlobS3Bucket = os.Getenv("HERDBOOK_BLOB_S3_BUCKET")
	cfg.BlobS3Region = os.Getenv("HERDBOOK_BLOB_S3_REGION")
	cfg.BlobS3Endpoint = os.Getenv("HERDBOOK_BLOB_S3_ENDPOINT")
	cfg.BlobS3PathStyle, err = getEnvBool("HERDBOOK_BLOB_S3_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("HERDBOOK_BLOB_S3_PATH_STYLE: %w", err)
	}
	if cfg.BlobDriver == "s3" && cfg.BlobS3Bucket == "" {
		return nil, fmt.Errorf("HERDBOOK_BLOB_S3_BUCKET: required when HERDBOOK_BLOB_DRIVER=s3")
	}

	cfg.SpeciesFile = os.Getenv("HERDBOOK_SPECIES_FILE")

	cfg.RelationshipCacheSize, err = getEnvInt("HERDBOOK_RELATIONSHIP_CACHE_SIZE", 4096)
	if err != nil {
		return nil, fmt.Errorf("HERDBOOK_RELATIONSHIP_CACHE_SIZE: %w", err)
	}
	if cfg.RelationshipCacheSize < 0 {
		return nil, fmt.Errorf("HERDBOOK_RELATIONSHIP_CACHE_SIZE: must be >= 0")
	}
	cfg.RelationshipCacheTTL, err = getEnvDuration("HERDBOOK_RELATIONSHIP_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("HERDBOOK_RELATIONSHIP_CACHE_TTL: %w", err)
	}

	if raw := os.Getenv("HERDBOOK_RANDOM_SEED"); raw != "" {
		cfg.RandomSeed, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("HERDBOOK_RANDOM_SEED: invalid unsigned integer %q", raw)
		}
	}

	return cfg, nil
}

// SetupLogger installs the process-wide slog logger described by cfg and
// returns it. Output goes to w (stdout when nil).
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With("version", Version)
	slog.SetDefault(logger)
	return logger
}

func getEnvDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use Go syntax: 30s, 15m, 1h)", val)
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", val)
	}
	return b, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported level %q, expected debug, info, warn or error", level)
	}
}
