package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	APIAddr       string
	MetricsAddr   string

	// Symbols to track (comma-separated NSE symbols, e.g. "SBIN,TCS,INFY")
	Symbols string

	// Refresh schedule (cron spec with seconds field); default is 4:00 PM
	// IST on weekdays, after the NSE close. Trading-day filtering happens
	// at run time, not in the cron spec.
	RefreshCron string

	// Cache TTL for latest snapshots in Redis
	SnapshotTTL time.Duration

	// Log level: debug | info | warn | error
	LogLevel string

	// Telegram alerting (optional — log-only notifier when unset)
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/stockpulse.db"),
		APIAddr:       getEnv("API_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		Symbols: getEnv("SYMBOLS", "SBIN,TCS,INFY,RELIANCE"),

		// 16:00 IST, Mon–Fri (the scheduler runs with the IST clock)
		RefreshCron: getEnv("REFRESH_CRON", "0 0 16 * * 1-5"),

		SnapshotTTL: getDuration("SNAPSHOT_TTL", 30*time.Minute),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// ParseSymbols parses the Symbols string into a deduplicated, upper-cased slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	seen := make(map[string]bool, len(parts))
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
