package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Upstream platform gateway (the live-event feed).
	UpstreamGatewayURL string

	// OpenAI-compatible generation services.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	SpeechModel   string

	// AudioCacheDir is where synthesized audio files are written; they are
	// served back to clients under /audio/.
	AudioCacheDir string

	// RedisURL enables the Redis-backed dedup store when set; empty means
	// the in-memory store is used.
	RedisURL string

	// Connection limits for the client websocket endpoint.
	MaxSessionsPerOrigin int
	MaxGlobalSessions    int
	ConnectRatePerSec    float64
	ConnectBurst         int
}

func Load() (*Config, error) {
	// Best effort: a missing .env file is fine outside development.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		UpstreamGatewayURL: getEnv("UPSTREAM_GATEWAY_URL", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		ChatModel:          getEnv("CHAT_MODEL", "gpt-4o-mini"),
		SpeechModel:        getEnv("SPEECH_MODEL", "tts-1"),
		AudioCacheDir:      getEnv("AUDIO_CACHE_DIR", os.TempDir()),
		RedisURL:           getEnv("REDIS_URL", ""),
	}

	var err error
	if cfg.MaxSessionsPerOrigin, err = getEnvInt("MAX_SESSIONS_PER_ORIGIN", 3); err != nil {
		return nil, err
	}
	if cfg.MaxGlobalSessions, err = getEnvInt("MAX_GLOBAL_SESSIONS", 500); err != nil {
		return nil, err
	}
	if cfg.ConnectRatePerSec, err = getEnvFloat("CONNECT_RATE_PER_SEC", 5); err != nil {
		return nil, err
	}
	if cfg.ConnectBurst, err = getEnvInt("CONNECT_BURST", 10); err != nil {
		return nil, err
	}

	if cfg.UpstreamGatewayURL == "" {
		return nil, fmt.Errorf("UPSTREAM_GATEWAY_URL is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.MaxSessionsPerOrigin < 1 {
		return nil, fmt.Errorf("MAX_SESSIONS_PER_ORIGIN must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
