package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	DBMaxConns  int32

	SiteURL        string
	AllowedOrigins []string
	AdminToken     string

	BrevoAPIKey      string
	BrevoBaseURL     string
	BrevoFolderID    int64
	BrevoRatePerSec  int
	ProviderTimeout  time.Duration
	SenderEmail      string
	SenderName       string
	ListIDPolish     int64
	ListIDEnglish    int64
	PendingTTL       time.Duration
	StatsCacheTTL    time.Duration
	BatchDelay       time.Duration
	FallbackDelay    time.Duration
	SubscribeLimit   int
	BroadcastWorkers int
	BroadcastLockTTL time.Duration
	PollInterval     time.Duration

	CircuitThreshold int
	CircuitCooldown  time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		DBMaxConns:  int32(getEnvInt("DB_MAX_CONNS", 10)),

		SiteURL:        strings.TrimRight(getEnv("SITE_URL", ""), "/"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),

		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		BrevoBaseURL:     getEnv("BREVO_BASE_URL", "https://api.brevo.com/v3"),
		BrevoFolderID:    getEnvInt64("BREVO_FOLDER_ID", 1),
		BrevoRatePerSec:  getEnvInt("BREVO_RATE_PER_SECOND", 10),
		ProviderTimeout:  getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
		SenderEmail:      getEnv("SENDER_EMAIL", ""),
		SenderName:       getEnv("SENDER_NAME", "Newsletter"),
		ListIDPolish:     getEnvInt64("BREVO_LIST_ID_PL", 0),
		ListIDEnglish:    getEnvInt64("BREVO_LIST_ID_EN", 0),
		PendingTTL:       getEnvDuration("PENDING_TTL", 24*time.Hour),
		StatsCacheTTL:    getEnvDuration("STATS_CACHE_TTL", time.Minute),
		BatchDelay:       getEnvDuration("BATCH_DELAY", 2*time.Minute),
		FallbackDelay:    getEnvDuration("FALLBACK_DELAY", 100*time.Millisecond),
		SubscribeLimit:   getEnvInt("SUBSCRIBE_RATE_LIMIT", 5),
		BroadcastWorkers: getEnvInt("BROADCAST_WORKERS", 1),
		BroadcastLockTTL: getEnvDuration("BROADCAST_LOCK_TTL", 2*time.Hour),
		PollInterval:     getEnvDuration("BROADCAST_POLL_INTERVAL", time.Second),

		CircuitThreshold: getEnvInt("CAMPAIGN_CIRCUIT_THRESHOLD", 5),
		CircuitCooldown:  getEnvDuration("CAMPAIGN_CIRCUIT_COOLDOWN", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.BrevoAPIKey == "" {
		missing = append(missing, "BREVO_API_KEY")
	}
	if c.SenderEmail == "" {
		missing = append(missing, "SENDER_EMAIL")
	}
	if c.SiteURL == "" {
		missing = append(missing, "SITE_URL")
	}
	if c.ListIDPolish <= 0 {
		missing = append(missing, "BREVO_LIST_ID_PL")
	}
	if c.ListIDEnglish <= 0 {
		missing = append(missing, "BREVO_LIST_ID_EN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.ListIDPolish == c.ListIDEnglish {
		return fmt.Errorf("BREVO_LIST_ID_PL and BREVO_LIST_ID_EN must differ")
	}
	if c.BroadcastWorkers <= 0 {
		return fmt.Errorf("BROADCAST_WORKERS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
