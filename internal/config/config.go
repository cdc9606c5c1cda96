package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// BrowserMode selects how moderator browsers are launched.
type BrowserMode string

const (
	// ModeLocal launches a persistent Chromium profile on this host.
	ModeLocal BrowserMode = "local"
	// ModeContainer launches one browserless/chrome container per
	// moderator and attaches over CDP.
	ModeContainer BrowserMode = "container"
)

// Config holds every tunable the server reads from the environment.
type Config struct {
	Addr    string
	ChatURL string

	BrowserMode BrowserMode
	Headless    bool

	// DataRoot holds one browser profile directory per moderator;
	// BackupRoot holds the per-moderator backup archives.
	DataRoot   string
	BackupRoot string

	// SessionSizeLimitBytes is the footprint threshold above which the
	// optimizer evicts the live profile back to its backup.
	SessionSizeLimitBytes int64

	MonitorInterval      time.Duration
	MonitorTimeout       time.Duration
	OperationWaitTimeout time.Duration
	NavigationTimeout    time.Duration

	MaxConcurrentBrowsers int64

	RedisURL    string
	RatePerHour int
	RateBurst   int
}

// FromEnv builds a Config from environment variables, applying defaults
// for anything unset.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                  getEnv("ADDR", ":8080"),
		ChatURL:               getEnv("CHAT_URL", "https://web.whatsapp.com"),
		BrowserMode:           BrowserMode(getEnv("BROWSER_MODE", string(ModeLocal))),
		Headless:              getBool("HEADLESS", true),
		DataRoot:              getEnv("DATA_ROOT", "./storage/sessions"),
		BackupRoot:            getEnv("BACKUP_ROOT", "./storage/backups"),
		SessionSizeLimitBytes: getInt64("SESSION_SIZE_LIMIT_MB", 600) * 1024 * 1024,
		MonitorInterval:       getDuration("MONITOR_INTERVAL_MS", 2*time.Second),
		MonitorTimeout:        getDuration("MONITOR_TIMEOUT_MS", 90*time.Second),
		OperationWaitTimeout:  getDuration("OPERATION_WAIT_TIMEOUT_MS", 30*time.Second),
		NavigationTimeout:     getDuration("NAVIGATION_TIMEOUT_MS", 45*time.Second),
		MaxConcurrentBrowsers: getInt64("MAX_CONCURRENT_BROWSERS", 10),
		RedisURL:              getEnv("REDIS_URL", ""),
		RatePerHour:           int(getInt64("RATE_PER_HOUR", 600)),
		RateBurst:             int(getInt64("RATE_BURST", 20)),
	}

	if cfg.BrowserMode != ModeLocal && cfg.BrowserMode != ModeContainer {
		return Config{}, fmt.Errorf("invalid BROWSER_MODE %q", cfg.BrowserMode)
	}
	if cfg.SessionSizeLimitBytes <= 0 {
		return Config{}, fmt.Errorf("SESSION_SIZE_LIMIT_MB must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
