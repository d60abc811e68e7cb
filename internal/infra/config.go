package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Dispatch backends.
const (
	DispatchBackendPython = "python"
	DispatchBackendN8N    = "n8n"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	PublicURL     string
	DatabaseURL   string
	JWTSecret     string
	DefaultLocale string
	GeoIPDBPath   string

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string

	DispatchBackend  string
	PythonBackendURL string
	PythonAPIKey     string
	N8NWebhookURL    string
	N8NWebhookSecret string
	DispatchTimeout  time.Duration
	WebhookSecret    string

	SweepInterval   time.Duration
	SweepStaleAfter time.Duration
	SweeperInline   bool

	SignedURLTTL             time.Duration
	SignedURLValidity        time.Duration
	SignedURLJanitorInterval time.Duration

	StorageDriver  string
	StorageBaseURL string
	StoragePath    string
	S3Bucket       string
	S3Region       string

	RedisURL string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          port,
		PublicURL:     strings.TrimRight(getEnv("PUBLIC_API_URL", "http://localhost:"+port), "/"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		DispatchBackend:  strings.ToLower(getEnv("DISPATCH_BACKEND", DispatchBackendPython)),
		PythonBackendURL: getEnv("PYTHON_BACKEND_URL", "http://localhost:8000"),
		PythonAPIKey:     os.Getenv("PYTHON_API_KEY"),
		N8NWebhookURL:    os.Getenv("N8N_WEBHOOK_URL"),
		N8NWebhookSecret: os.Getenv("N8N_WEBHOOK_SECRET"),
		DispatchTimeout:  time.Second * time.Duration(getEnvInt("DISPATCH_TIMEOUT_SECONDS", 60)),

		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepStaleAfter: getEnvDuration("SWEEP_STALE_AFTER", 20*time.Minute),
		SweeperInline:   getEnvBool("SWEEPER_INLINE", false),

		SignedURLTTL:             getEnvDuration("SIGNED_URL_TTL", 50*time.Minute),
		SignedURLValidity:        getEnvDuration("SIGNED_URL_VALIDITY", time.Hour),
		SignedURLJanitorInterval: getEnvDuration("SIGNED_URL_JANITOR_INTERVAL", 10*time.Minute),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		S3Bucket:       os.Getenv("AWS_S3_BUCKET"),
		S3Region:       getEnv("AWS_S3_REGION", "us-east-1"),

		RedisURL: os.Getenv("REDIS_URL"),
	}
	cfg.WebhookSecret = firstNonEmpty(os.Getenv("WEBHOOK_SECRET"), cfg.PythonAPIKey, cfg.N8NWebhookSecret)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.DispatchBackend {
	case DispatchBackendPython:
	case DispatchBackendN8N:
		if cfg.N8NWebhookURL == "" {
			return nil, fmt.Errorf("N8N_WEBHOOK_URL is required when DISPATCH_BACKEND=n8n")
		}
	default:
		return nil, fmt.Errorf("unsupported DISPATCH_BACKEND %q", cfg.DispatchBackend)
	}

	if cfg.SignedURLTTL >= cfg.SignedURLValidity {
		return nil, fmt.Errorf("SIGNED_URL_TTL (%s) must be shorter than SIGNED_URL_VALIDITY (%s)", cfg.SignedURLTTL, cfg.SignedURLValidity)
	}

	if cfg.StorageDriver == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required when STORAGE_DRIVER=s3")
	}

	return cfg, nil
}

// WebhookCallbackURL is the status endpoint handed to the external processor.
func (c *Config) WebhookCallbackURL() string {
	return c.PublicURL + "/v1/webhooks/generation-status"
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
