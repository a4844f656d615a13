package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	SunoAPIKey    string
	SunoBaseURL   string
	SunoModel     string
	MurekaAPIKey  string
	MurekaBaseURL string
	MurekaModel   string

	PollInterval   time.Duration
	PollTimeout    time.Duration
	RequestTimeout time.Duration

	StoragePath    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	AllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     getEnvInt("REDIS_DB", 0),

		SunoAPIKey:    os.Getenv("SUNO_API_KEY"),
		SunoBaseURL:   os.Getenv("SUNO_BASE_URL"),
		SunoModel:     os.Getenv("SUNO_MODEL"),
		MurekaAPIKey:  os.Getenv("MUREKA_API_KEY"),
		MurekaBaseURL: os.Getenv("MUREKA_BASE_URL"),
		MurekaModel:   os.Getenv("MUREKA_MODEL"),

		PollInterval:   time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollTimeout:    time.Minute * time.Duration(getEnvInt("POLL_TIMEOUT_MINUTES", 10)),
		RequestTimeout: time.Second * time.Duration(getEnvInt("PROVIDER_REQUEST_TIMEOUT_SECONDS", 30)),

		StoragePath:    getEnv("STORAGE_PATH", "./data/tracks"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "tracks"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",

		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SunoAPIKey == "" && cfg.MurekaAPIKey == "" {
		return nil, fmt.Errorf("at least one of SUNO_API_KEY or MUREKA_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
