package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only the Plex and Telegram
// credentials are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Upstream media server
	PlexURL     string
	PlexToken   string
	PlexTimeout time.Duration

	// Outbound notification channel
	TelegramToken   string
	TelegramBaseURL string
	SendTimeout     time.Duration
	SendRate        int // messages per second across all subscribers
	SendConcurrency int // concurrent subscriber fan-out per cycle

	// Cache
	CacheBackend string // "file" or "bolt"
	DataDir      string
	CacheTTL     time.Duration

	// Subscriber directory (read-only, reloaded every cycle)
	SubscribersFile string

	// Scheduler intervals
	RefreshInterval time.Duration // full catalog refresh + persist
	CheckInterval   time.Duration // change-check cycle

	// Delivery ledger: in-memory unless DATABASE_URL is set.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// RetryFailed switches failed deliveries from at-most-once (the
	// default) to retry-on-next-cycle with per-item dedup.
	RetryFailed bool
}

func Load() (*Config, error) {
	plexURL := os.Getenv("PLEX_URL")
	if plexURL == "" {
		return nil, fmt.Errorf("PLEX_URL is required")
	}
	plexToken := os.Getenv("PLEX_TOKEN")
	if plexToken == "" {
		return nil, fmt.Errorf("PLEX_TOKEN is required")
	}
	tgToken := os.Getenv("TELEGRAM_TOKEN")
	if tgToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	backend := getEnv("CACHE_BACKEND", "file")
	if backend != "file" && backend != "bolt" {
		return nil, fmt.Errorf("CACHE_BACKEND must be \"file\" or \"bolt\", got %q", backend)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		PlexURL:     plexURL,
		PlexToken:   plexToken,
		PlexTimeout: getDuration("PLEX_TIMEOUT", 15*time.Second),

		TelegramToken:   tgToken,
		TelegramBaseURL: getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		SendTimeout:     getDuration("SEND_TIMEOUT", 10*time.Second),
		SendRate:        getInt("SEND_RATE", 25),
		SendConcurrency: getInt("SEND_CONCURRENCY", 8),

		CacheBackend: backend,
		DataDir:      getEnv("DATA_DIR", "data"),
		CacheTTL:     getDuration("CACHE_TTL", time.Hour),

		SubscribersFile: getEnv("SUBSCRIBERS_FILE", "user.yml"),

		RefreshInterval: getDuration("REFRESH_INTERVAL", time.Hour),
		CheckInterval:   getDuration("CHECK_INTERVAL", time.Minute),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		RetryFailed: getBool("RETRY_FAILED", false),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
