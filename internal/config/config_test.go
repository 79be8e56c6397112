package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/newsletter")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("BREVO_API_KEY", "xkeysib-test")
	t.Setenv("SENDER_EMAIL", "blog@example.com")
	t.Setenv("SITE_URL", "https://example.com/")
	t.Setenv("BREVO_LIST_ID_PL", "7")
	t.Setenv("BREVO_LIST_ID_EN", "8")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.SiteURL != "https://example.com" {
		t.Errorf("SiteURL = %q, trailing slash should be trimmed", cfg.SiteURL)
	}
	if cfg.ListIDPolish != 7 || cfg.ListIDEnglish != 8 {
		t.Errorf("list ids = %d/%d", cfg.ListIDPolish, cfg.ListIDEnglish)
	}
	if cfg.BatchDelay != 2*time.Minute {
		t.Errorf("BatchDelay = %v", cfg.BatchDelay)
	}
	if cfg.PendingTTL != 24*time.Hour {
		t.Errorf("PendingTTL = %v", cfg.PendingTTL)
	}
	if cfg.BroadcastWorkers != 1 {
		t.Errorf("BroadcastWorkers = %d", cfg.BroadcastWorkers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BATCH_DELAY", "5s")
	t.Setenv("SUBSCRIBE_RATE_LIMIT", "20")
	t.Setenv("ALLOWED_ORIGINS", "https://example.com, https://www.example.com,")
	t.Setenv("PENDING_TTL", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchDelay != 5*time.Second {
		t.Errorf("BatchDelay = %v", cfg.BatchDelay)
	}
	if cfg.SubscribeLimit != 20 {
		t.Errorf("SubscribeLimit = %d", cfg.SubscribeLimit)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://www.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.PendingTTL != 24*time.Hour {
		t.Errorf("invalid duration should fall back, got %v", cfg.PendingTTL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("BREVO_API_KEY", "")
	t.Setenv("BREVO_LIST_ID_EN", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"BREVO_API_KEY", "BREVO_LIST_ID_EN"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q should name %s", err, key)
		}
	}
}

func TestLoad_SameListIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("BREVO_LIST_ID_EN", "7")

	if _, err := Load(); err == nil {
		t.Error("identical list ids should be rejected")
	}
}
