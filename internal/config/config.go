package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port           int
	DatabaseURL    string
	NatsURL        string
	NatsToken      string
	LogLevel       string
	GeminiAPIKey   string
	GeminiModel    string
	LLMTimeoutSecs int
	APIToken       string
}

func Load() Config {
	return Config{
		Port:           envInt("NEGOTIATOR_PORT", 8760),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		NatsURL:        envStr("NATS_URL", ""),
		NatsToken:      envStr("NATS_TOKEN", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		GeminiAPIKey:   envStr("GEMINI_API_KEY", ""),
		GeminiModel:    envStr("NEGOTIATOR_MODEL", "gemini-2.0-flash"),
		LLMTimeoutSecs: envInt("LLM_TIMEOUT_SECONDS", 8),
		APIToken:       envStr("NEGOTIATOR_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
