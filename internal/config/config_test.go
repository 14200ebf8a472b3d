package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "GEMINI_API_KEY", "LOG_LEVEL", "DEBUG", "PREFER_IPV4",
		"GEMINI_BASE_URL", "GEMINI_API_VERSION", "GEMINI_IMAGE_MODEL", "GEMINI_BACKEND",
		"GEMINI_MIN_INTERVAL_MS", "STYLE_CATALOG_FILE", "WEB_ADDR", "RESULT_TTL_MINUTES",
		"MEDIA_GROUP_DEBOUNCE_MS", "REQUEST_TIMEOUT_SECONDS", "HTTP_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresGeminiKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	assert.EqualError(t, err, "GEMINI_API_KEY is required")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.PreferIPv4)
	assert.Equal(t, "https://generativelanguage.googleapis.com", cfg.GeminiBaseURL)
	assert.Equal(t, "v1beta", cfg.GeminiAPIVersion)
	assert.Equal(t, "gemini-2.5-flash-image-preview", cfg.GeminiImageModel)
	assert.Equal(t, "rest", cfg.GeminiBackend)
	assert.Zero(t, cfg.GeminiMinInterval)
	assert.Equal(t, ":8080", cfg.WebAddr)
	assert.Equal(t, 30*time.Minute, cfg.ResultTTL)
	assert.Equal(t, 1200*time.Millisecond, cfg.MediaGroupDebounce)
	assert.Equal(t, 180*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 180*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.StyleCatalogFile)
	assert.EqualError(t, cfg.RequireTelegram(), "TELEGRAM_BOT_TOKEN is required")
}

func TestLoadOverridesAndClamps(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", " key ")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_BACKEND", "SDK")
	t.Setenv("GEMINI_MIN_INTERVAL_MS", "250")
	t.Setenv("RESULT_TTL_MINUTES", "-5")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "abc")
	t.Setenv("STYLE_CATALOG_FILE", "styles.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "sdk", cfg.GeminiBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.GeminiMinInterval)
	assert.Equal(t, 30*time.Minute, cfg.ResultTTL)
	assert.Equal(t, 180*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "styles.yaml", cfg.StyleCatalogFile)
	assert.NoError(t, cfg.RequireTelegram())
}

func TestLoadUnknownBackendFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("GEMINI_BACKEND", "grpc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "rest", cfg.GeminiBackend)
}

func TestSlogLevel(t *testing.T) {
	cases := []struct {
		cfg  Config
		want slog.Level
	}{
		{Config{LogLevel: "debug"}, slog.LevelDebug},
		{Config{LogLevel: "warn"}, slog.LevelWarn},
		{Config{LogLevel: "error"}, slog.LevelError},
		{Config{LogLevel: "verbose"}, slog.LevelInfo},
		{Config{LogLevel: "error", Debug: true}, slog.LevelDebug},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.cfg.SlogLevel(), tc.cfg.LogLevel)
	}
}
