package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the environment-derived settings for every ambient
// concern (SPEC_FULL.md §A.3): storage location, HTTP bind address,
// log verbosity, ingestion concurrency, and the stale-import grace
// window.
type Config struct {
	DBPath           string
	HTTPAddr         string
	LogLevel         string
	MaxIngestWorkers int
	StaleImportGrace time.Duration
}

func Load() Config {
	return Config{
		DBPath:           envStr("CHATVAULT_DB_PATH", "chatvault.db"),
		HTTPAddr:         envStr("CHATVAULT_HTTP_ADDR", ":8080"),
		LogLevel:         envStr("CHATVAULT_LOG_LEVEL", "info"),
		MaxIngestWorkers: envInt("CHATVAULT_MAX_INGEST_WORKERS", 4),
		StaleImportGrace: envDuration("CHATVAULT_STALE_IMPORT_GRACE", time.Hour),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
