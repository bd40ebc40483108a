package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	FrontendURL         string
	FrontendCallbackURL string
	BaseURL             string

	Google OAuthConfig

	SMTP      SMTPConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Functions FunctionsConfig

	InternalServiceKey string

	AlertConcurrency  int
	TeamInvitationTTL time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// StorageConfig points at an S3-compatible endpoint (Cloudflare R2 in production).
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
	MaxUploadBytes  int64
}

type RedisConfig struct {
	Addr             string
	Password         string
	WaitlistCacheTTL time.Duration
}

// FunctionsConfig addresses the sibling serverless functions (bib-exchange-alert, send-email).
type FunctionsConfig struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:        getEnvOrPanic("JWT_SECRET"),
		JWTAccessExpiry:  getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: getDuration("JWT_REFRESH_EXPIRY", 168*time.Hour),

		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		FrontendCallbackURL: getEnv("FRONTEND_CALLBACK_URL", "http://localhost:5173/auth/callback"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),

		Google: OAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		},

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},

		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			Region:          getEnv("STORAGE_REGION", "auto"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("STORAGE_BUCKET", "email-assets"),
			PublicBaseURL:   getEnv("STORAGE_PUBLIC_BASE_URL", ""),
			MaxUploadBytes:  int64(getInt("STORAGE_MAX_UPLOAD_BYTES", 5<<20)),
		},

		Redis: RedisConfig{
			Addr:             getEnv("REDIS_URL", ""),
			Password:         getEnv("REDIS_PASSWORD", ""),
			WaitlistCacheTTL: getDuration("WAITLIST_CACHE_TTL", 15*time.Second),
		},

		Functions: FunctionsConfig{
			BaseURL:      getEnv("FUNCTIONS_BASE_URL", ""),
			ServiceToken: getEnv("FUNCTIONS_SERVICE_TOKEN", ""),
			Timeout:      getDuration("FUNCTIONS_TIMEOUT", 10*time.Second),
		},

		InternalServiceKey: getEnv("INTERNAL_SERVICE_KEY", ""),

		AlertConcurrency:  getInt("ALERT_CONCURRENCY", 8),
		TeamInvitationTTL: getDuration("TEAM_INVITATION_TTL", 30*24*time.Hour),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (s StorageConfig) IsConfigured() bool {
	return s.Endpoint != "" && s.AccessKeyID != "" && s.SecretAccessKey != "" && s.Bucket != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}
