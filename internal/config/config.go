package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// ハンドラーやサービスはこの値をコンストラクタ経由で受け取り、
// 処理中に環境変数を直接参照しない。
type Config struct {
	// Database
	DatabaseURL string

	// Mapping store (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Discord OAuth
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURL  string

	// Link flow
	TicketTTL       time.Duration
	SuccessURL      string
	ErrorURL        string
	ExchangeTimeout time.Duration

	// Credential
	TokenSecret string
	TokenTTL    time.Duration

	// Server
	ServerPort  string
	AppSlug     string
	AppName     string
	AppLoginURL string

	// Rate Limit (req/min per IP, oauth routes)
	RateLimitOAuth int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.DiscordClientID = os.Getenv("DISCORD_CLIENT_ID")
	if cfg.DiscordClientID == "" {
		missing = append(missing, "DISCORD_CLIENT_ID")
	}

	cfg.DiscordClientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	if cfg.DiscordClientSecret == "" {
		missing = append(missing, "DISCORD_CLIENT_SECRET")
	}

	cfg.DiscordRedirectURL = os.Getenv("DISCORD_REDIRECT_URL")
	if cfg.DiscordRedirectURL == "" {
		missing = append(missing, "DISCORD_REDIRECT_URL")
	}

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		missing = append(missing, "TOKEN_SECRET")
	}

	cfg.SuccessURL = os.Getenv("LINK_SUCCESS_URL")
	if cfg.SuccessURL == "" {
		missing = append(missing, "LINK_SUCCESS_URL")
	}

	cfg.ErrorURL = os.Getenv("LINK_ERROR_URL")
	if cfg.ErrorURL == "" {
		missing = append(missing, "LINK_ERROR_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.TicketTTL = getEnvDuration("LINK_TICKET_TTL", 15*time.Minute)
	cfg.ExchangeTimeout = getEnvDuration("EXCHANGE_TIMEOUT", 10*time.Second)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 1*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppSlug = getEnvString("APP_SLUG", "app")
	cfg.AppName = getEnvString("APP_NAME", "App")
	cfg.AppLoginURL = getEnvString("APP_LOGIN_URL", "/")
	cfg.RateLimitOAuth = getEnvInt("RATE_LIMIT_OAUTH", 30)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
