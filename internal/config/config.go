package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	GeminiBaseURL     string
	GeminiAPIVersion  string
	GeminiImageModel  string
	GeminiBackend     string
	GeminiMinInterval time.Duration

	StyleCatalogFile string

	WebAddr   string
	ResultTTL time.Duration

	MediaGroupDebounce time.Duration
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
}

// Load reads the environment. Only the Gemini key is mandatory here; front
// ends that need more call the matching Require method.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		GeminiBaseURL:      strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion:   strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		GeminiImageModel:   strings.TrimSpace(getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image-preview")),
		GeminiBackend:      strings.ToLower(strings.TrimSpace(getEnv("GEMINI_BACKEND", "rest"))),
		GeminiMinInterval:  time.Duration(getEnvInt("GEMINI_MIN_INTERVAL_MS", 0)) * time.Millisecond,
		StyleCatalogFile:   strings.TrimSpace(os.Getenv("STYLE_CATALOG_FILE")),
		WebAddr:            strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
		ResultTTL:          time.Duration(getEnvInt("RESULT_TTL_MINUTES", 30)) * time.Minute,
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	switch cfg.GeminiBackend {
	case "rest", "sdk":
	default:
		cfg.GeminiBackend = "rest"
	}
	if cfg.GeminiMinInterval < 0 {
		cfg.GeminiMinInterval = 0
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 30 * time.Minute
	}
	if cfg.MediaGroupDebounce <= 0 {
		cfg.MediaGroupDebounce = 1200 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto slog; DEBUG=true forces debug.
func (c Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
