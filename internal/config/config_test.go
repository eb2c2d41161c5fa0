package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("POSTGRES_URL", "postgres://localhost/civcon")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SMS_GATEWAY_URL", "https://api.example.com/version1/messaging")
	t.Setenv("SMS_USERNAME", "civcon")
	t.Setenv("SMS_API_KEY", "secret")
}

func TestLoadAll_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Server.Address)
	}
	if cfg.Session.TTL != 600*time.Second {
		t.Fatalf("expected default session TTL 600s, got %v", cfg.Session.TTL)
	}
	if cfg.Session.MPCacheTTL != 1800*time.Second {
		t.Fatalf("expected default MP cache TTL 1800s, got %v", cfg.Session.MPCacheTTL)
	}
	if cfg.SMS.ContentMax != 160 {
		t.Fatalf("expected default content max 160, got %d", cfg.SMS.ContentMax)
	}
	if cfg.Fallback.Phone != "+256784437652" {
		t.Fatalf("expected default fallback phone, got %q", cfg.Fallback.Phone)
	}
	if cfg.Dispatcher.RetryInterval != 120*time.Second {
		t.Fatalf("expected default retry interval 120s, got %v", cfg.Dispatcher.RetryInterval)
	}
	if cfg.Dispatcher.BatchSize != 10 || cfg.Dispatcher.MaxAttempts != 3 {
		t.Fatalf("unexpected dispatcher defaults: %+v", cfg.Dispatcher)
	}
	if cfg.Moderation.SpamThreshold != 0.7 {
		t.Fatalf("expected default spam threshold 0.7, got %v", cfg.Moderation.SpamThreshold)
	}
}

func TestLoadAll_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("SESSION_TTL_SECONDS", "300")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SMS_SENDER_ID", "CIVCON")
	t.Setenv("SPAM_THRESHOLD", "0.9")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Fatalf("expected address :9090, got %q", cfg.Server.Address)
	}
	if cfg.Session.TTL != 300*time.Second {
		t.Fatalf("expected session TTL 300s, got %v", cfg.Session.TTL)
	}
	if cfg.Redis.DB != 2 {
		t.Fatalf("expected redis db 2, got %d", cfg.Redis.DB)
	}
	if cfg.SMS.SenderID != "CIVCON" {
		t.Fatalf("expected sender id CIVCON, got %q", cfg.SMS.SenderID)
	}
	if cfg.Moderation.SpamThreshold != 0.9 {
		t.Fatalf("expected spam threshold 0.9, got %v", cfg.Moderation.SpamThreshold)
	}
	if cfg.Dispatcher.MaxAttempts != 5 {
		t.Fatalf("expected max attempts 5, got %d", cfg.Dispatcher.MaxAttempts)
	}
}

func TestLoadAll_MissingRequiredEnvPanics(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POSTGRES_URL", "")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for missing POSTGRES_URL")
		}
	}()
	_, _ = LoadAll()
}

func TestLoadAll_InvalidIntPanics(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_TTL_SECONDS", "not-a-number")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for invalid int")
		}
	}()
	_, _ = LoadAll()
}

func TestLoadAll_InvalidThresholdPanics(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SPAM_THRESHOLD", "1.5")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for out-of-range threshold")
		}
	}()
	_, _ = LoadAll()
}

func TestLoadAll_ZeroBatchSizePanics(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RETRY_BATCH_SIZE", "0")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for zero batch size")
		}
	}()
	_, _ = LoadAll()
}
