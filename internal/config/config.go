package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env         string
	Port        int
	DBURL       string
	DBMaxConns  int
	StoreDriver string

	AdminEmail    string
	AdminPassword string
	AdminName     string

	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int
	ActionTokenTTLHours int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AppVersion      string
	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelSampleRatio float64

	AppBaseURL     string
	AllowedOrigins []string

	WorkerEmbedded    bool
	WorkerPollMS      int
	WorkerHealthPort  int
	NotifierTimeoutMS int

	SendGridAPIKey string
	MailFrom       string
}

func Load() Config {
	// a missing .env is fine, real environments inject variables directly
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnvInt("PORT", 8080),
		DBURL:       getEnv("DB_URL", buildDBURL()),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),
		ActionTokenTTLHours: getEnvInt("ACTION_TOKEN_TTL_HOURS", 24),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AppVersion:      getEnv("APP_VERSION", "dev"),
		OTelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		AppBaseURL:     strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		WorkerEmbedded:    getEnvBool("WORKER_EMBEDDED", false),
		WorkerPollMS:      getEnvInt("WORKER_POLL_MS", 500),
		WorkerHealthPort:  getEnvInt("WORKER_HEALTH_PORT", 8081),
		NotifierTimeoutMS: getEnvInt("NOTIFIER_TIMEOUT_MS", 3000),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		MailFrom:       getEnv("MAIL_FROM", "no-reply@profilehub.local"),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func (c Config) ActionTokenTTL() time.Duration {
	return time.Duration(c.ActionTokenTTLHours) * time.Hour
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "profilehub")
	pass := getEnv("DB_PASSWORD", "profilehub")
	name := getEnv("DB_NAME", "profilehub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// WithRequestTimeout bounds work done for a request while keeping its session and trace.
func WithRequestTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env var, using default", "key", key, "value", v)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v)
			return fallback
		}

		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
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
