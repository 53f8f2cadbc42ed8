package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	LogLevel    string
	ReadOnly    bool

	AllowedOrigins []string
	CacheStaleTime time.Duration

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string
	PlaidWebhook  string

	CoinGeckoURL    string
	CoinGeckoKey    string
	AlphaVantageURL string
	AlphaVantageKey string
	ExchangeRateURL string

	LLMGatewayURL string
	LLMGatewayKey string
	LLMModel      string
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
)

func Load() (Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ReadOnly:    getBool("READ_ONLY", false),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		CacheStaleTime: getDuration("CACHE_STALE_TIME", 30*time.Second),

		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      getEnv("PLAID_ENV", "sandbox"),
		PlaidWebhook:  getEnv("PLAID_WEBHOOK_URL", ""),

		CoinGeckoURL:    getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoKey:    getEnv("COINGECKO_API_KEY", ""),
		AlphaVantageURL: getEnv("ALPHA_VANTAGE_URL", "https://www.alphavantage.co"),
		AlphaVantageKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		ExchangeRateURL: getEnv("EXCHANGE_RATE_URL", "https://open.er-api.com/v6"),

		LLMGatewayURL: getEnv("LLM_GATEWAY_URL", ""),
		LLMGatewayKey: getEnv("LLM_GATEWAY_KEY", ""),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4o-mini"),
	}

	if cfg.DatabaseURL == "" {
		return cfg, ErrMissingDatabaseURL
	}
	if cfg.JWTSecret == "" {
		return cfg, ErrMissingJWTSecret
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
