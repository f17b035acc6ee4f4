package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBDSN    string
	RedisDSN string
	HTTPAddr string
	LogLevel string

	// raw secrets kept in-memory only; never log these
	BotToken       string
	AdminSecretKey string // admin key for the HTTP API
	AdminUserID    int64  // telegram user id allowed to run /stats

	AssistantAPIKey  string
	AssistantBaseURL string
	AssistantModel   string

	PollTimeoutSeconds   int
	WarnSweepInterval    time.Duration
	PenaltySweepInterval time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:            os.Getenv("DB_DSN"),
		RedisDSN:         getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		BotToken:         os.Getenv("BOT_TOKEN"),
		AdminSecretKey:   getenvDefault("ADMIN_SECRET_KEY", ""),
		AssistantAPIKey:  os.Getenv("ASSISTANT_API_KEY"),
		AssistantBaseURL: getenvDefault("ASSISTANT_BASE_URL", "https://api.openai.com/v1"),
		AssistantModel:   getenvDefault("ASSISTANT_MODEL", "gpt-4o-mini"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	if raw := os.Getenv("ADMIN_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, errors.New("ADMIN_USER_ID must be a numeric telegram id")
		}
		cfg.AdminUserID = id
	}

	cfg.PollTimeoutSeconds = getenvInt("POLL_TIMEOUT_SECONDS", 30)

	// sweep cadence: warn hourly, penalty every half hour
	cfg.WarnSweepInterval = getenvDuration("WARN_SWEEP_INTERVAL", time.Hour)
	cfg.PenaltySweepInterval = getenvDuration("PENALTY_SWEEP_INTERVAL", 30*time.Minute)

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
