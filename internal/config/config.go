package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string // API bind address, e.g., "127.0.0.1:8080" (Windows) or ":8080" (Docker)
	LogDir      string // logs directory
	DatabaseURL string // postgres://..., a sqlite file path, or empty for in-memory

	// Scheduler defaults; per-target settings take precedence.
	CheckInterval    time.Duration
	ProbeTimeout     time.Duration
	DeepCheckTimeout time.Duration
	AlertThreshold   int

	// Probe retry tuning.
	RetryAttempts int
	RetryBackoff  time.Duration

	// Alert delivery.
	SlackWebhook string
	AlertWebhook string

	// API hardening.
	PublicAPIKeys   []string
	AdminAPIKeys    []string
	AllowedOrigins  []string
	RateLimitPerMin int
}

func FromEnv() Config {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	return Config{
		Addr:        addr,
		LogDir:      logDir,
		DatabaseURL: os.Getenv("DATABASE_URL"),

		CheckInterval:    durationEnv("CHECK_INTERVAL", 60*time.Second),
		ProbeTimeout:     durationEnv("PROBE_TIMEOUT", 10*time.Second),
		DeepCheckTimeout: durationEnv("DEEP_CHECK_TIMEOUT", 30*time.Second),
		AlertThreshold:   intEnv("ALERT_THRESHOLD", 3),

		RetryAttempts: intEnv("RETRY_ATTEMPTS", 2),
		RetryBackoff:  time.Duration(intEnv("RETRY_BACKOFF_MS", 300)) * time.Millisecond,

		SlackWebhook: os.Getenv("SLACK_WEBHOOK"),
		AlertWebhook: os.Getenv("ALERT_WEBHOOK"),

		PublicAPIKeys:   listEnv("PUBLIC_API_KEYS"),
		AdminAPIKeys:    listEnv("ADMIN_API_KEYS"),
		AllowedOrigins:  listEnv("ALLOWED_ORIGINS"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// durationEnv accepts Go duration syntax ("90s", "2m") and, for convenience,
// a bare integer meaning seconds.
func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return def
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func listEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
