package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	SMS        SMSConfig
	Fallback   FallbackConfig
	Dispatcher DispatcherConfig
	Moderation ModerationConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type SessionConfig struct {
	TTL        time.Duration
	MPCacheTTL time.Duration
}

type SMSConfig struct {
	GatewayURL string
	Username   string
	APIKey     string
	SenderID   string
	ContentMax int
}

// FallbackConfig is the default recipient when no representative matches a
// citizen's district.
type FallbackConfig struct {
	Name  string
	Phone string
}

type DispatcherConfig struct {
	RetryInterval time.Duration
	BatchSize     int
	MaxAttempts   int
}

type ModerationConfig struct {
	SpamThreshold float64
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			Address:  mustEnv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			TTL:        time.Duration(getEnvInt("SESSION_TTL_SECONDS", 600)) * time.Second,
			MPCacheTTL: time.Duration(getEnvInt("MP_CACHE_TTL_SECONDS", 1800)) * time.Second,
		},
		SMS: SMSConfig{
			GatewayURL: mustEnv("SMS_GATEWAY_URL"),
			Username:   mustEnv("SMS_USERNAME"),
			APIKey:     mustEnv("SMS_API_KEY"),
			SenderID:   getEnv("SMS_SENDER_ID", ""),
			ContentMax: getEnvInt("CONTENT_MAX", 160),
		},
		Fallback: FallbackConfig{
			Name:  getEnv("FALLBACK_MP_NAME", "Civic Office"),
			Phone: getEnv("FALLBACK_MP_PHONE", "+256784437652"),
		},
		Dispatcher: DispatcherConfig{
			RetryInterval: time.Duration(getEnvInt("RETRY_INTERVAL_SECONDS", 120)) * time.Second,
			BatchSize:     getEnvInt("RETRY_BATCH_SIZE", 10),
			MaxAttempts:   getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		},
		Moderation: ModerationConfig{
			SpamThreshold: getEnvFloat("SPAM_THRESHOLD", 0.7),
		},
	}

	validate(cfg)
	return cfg, nil
}

func validate(cfg *Config) {
	if cfg.Session.TTL <= 0 {
		panic("SESSION_TTL_SECONDS must be > 0")
	}
	if cfg.Session.MPCacheTTL <= 0 {
		panic("MP_CACHE_TTL_SECONDS must be > 0")
	}
	if cfg.SMS.ContentMax <= 0 {
		panic("CONTENT_MAX must be > 0")
	}
	if cfg.Dispatcher.RetryInterval <= 0 {
		panic("RETRY_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Dispatcher.BatchSize <= 0 {
		panic("RETRY_BATCH_SIZE must be > 0")
	}
	if cfg.Dispatcher.MaxAttempts <= 0 {
		panic("RETRY_MAX_ATTEMPTS must be > 0")
	}
	if cfg.Moderation.SpamThreshold <= 0 || cfg.Moderation.SpamThreshold > 1 {
		panic("SPAM_THRESHOLD must be in (0, 1]")
	}
	if cfg.Fallback.Phone == "" {
		panic("FALLBACK_MP_PHONE must not be empty")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid float for env %s: %s", key, v))
	}
	return f
}
