package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	BackendURL     string
	BackendTimeout time.Duration

	// Empty RedisURL keeps session contexts in process memory.
	RedisURL string
	// Empty DatabaseURL disables the session audit journal.
	DatabaseURL string

	BaseLocale               string
	DefaultAudioMax          time.Duration
	ImageDescriptionAudioMax time.Duration
	MemoryDisplay            time.Duration
	DigitSpanInterval        time.Duration
	MediaFanoutLimit         int
	PersistTimeout           time.Duration

	SessionTTL        time.Duration
	SessionContextTTL time.Duration
	SweepInterval     time.Duration
	MaxUploadBytes    int64
	// Zero keeps the journal forever.
	AuditRetention time.Duration

	Events EventConfig
}

// LoadConfig reads the environment. A .env file is optional.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000/v1"),
		BackendTimeout: getDuration("BACKEND_TIMEOUT", 15*time.Second),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		BaseLocale:               getEnv("BASE_LOCALE", "en"),
		DefaultAudioMax:          time.Duration(getInt("DEFAULT_AUDIO_MAX_SECONDS", 300)) * time.Second,
		ImageDescriptionAudioMax: time.Duration(getInt("IMAGE_DESCRIPTION_AUDIO_MAX_SECONDS", 60)) * time.Second,
		MemoryDisplay:            time.Duration(getInt("MEMORY_DISPLAY_SECONDS", 5)) * time.Second,
		DigitSpanInterval:        time.Duration(getInt("DIGIT_SPAN_INTERVAL_MS", 1000)) * time.Millisecond,
		MediaFanoutLimit:         getInt("MEDIA_FANOUT_LIMIT", 8),
		PersistTimeout:           getDuration("PERSIST_TIMEOUT", 30*time.Second),

		SessionTTL:        getDuration("SESSION_TTL", 4*time.Hour),
		SessionContextTTL: getDuration("SESSION_CONTEXT_TTL", 24*time.Hour),
		SweepInterval:     getDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		MaxUploadBytes:    int64(getInt("MAX_UPLOAD_MB", 25)) << 20,
		AuditRetention:    getDuration("AUDIT_RETENTION", 90*24*time.Hour),

		Events: LoadEventConfig(),
	}

	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}
	if cfg.MediaFanoutLimit <= 0 {
		return nil, fmt.Errorf("MEDIA_FANOUT_LIMIT must be positive, got %d", cfg.MediaFanoutLimit)
	}
	return cfg, nil
}

// SessionService maps the runner settings onto the session service.
func (c *Config) SessionService() services.SessionServiceConfig {
	return services.SessionServiceConfig{
		BaseLocale:               c.BaseLocale,
		DefaultAudioMax:          c.DefaultAudioMax,
		ImageDescriptionAudioMax: c.ImageDescriptionAudioMax,
		MemoryDisplay:            c.MemoryDisplay,
		DigitInterval:            c.DigitSpanInterval,
		FanoutLimit:              c.MediaFanoutLimit,
		PersistTimeout:           c.PersistTimeout,
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getDuration accepts Go durations ("90s") or plain seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
