package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string
	AuthTokenTTL  time.Duration

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Redis      RedisConfig
	NATS       NATSConfig
	Email      EmailConfig
	Evaluation EvaluationConfig
	Outbox     OutboxConfig
	RateLimit  RateLimitConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type NATSConfig struct {
	URL             string
	NotifySubject   string
	SnapshotSubject string
	SnapshotQueue   string
}

func (c NATSConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

type OutboxConfig struct {
	Workers       int
	BatchSize     int
	PollInterval  time.Duration
	RatePerSecond float64
	MaxAttempts   int
}

// RateLimitConfig throttles privileged admin actions per actor.
type RateLimitConfig struct {
	ActionRate  float64
	ActionBurst int
}

func (c RateLimitConfig) Enabled() bool {
	return c.ActionRate > 0 && c.ActionBurst > 0
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:       getenv("APP_SERVICE", "adminwatch"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthTokenTTL:  getenvDuration("AUTH_TOKEN_TTL", 12*time.Hour),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "adminwatch"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:             strings.TrimSpace(getenv("NATS_URL", "")),
			NotifySubject:   getenv("NATS_NOTIFY_SUBJECT", "adminwatch.notifications"),
			SnapshotSubject: strings.TrimSpace(getenv("SNAPSHOT_INGEST_SUBJECT", "")),
			SnapshotQueue:   getenv("SNAPSHOT_INGEST_QUEUE", "adminwatch-snapshots"),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "alerts@adminwatch.local"),
		},
		Evaluation: EvaluationConfig{
			Interval:    getenvDuration("EVALUATION_INTERVAL", 5*time.Minute),
			Concurrency: getenvInt("EVALUATION_CONCURRENCY", 4),
			JobTimeout:  getenvDuration("EVALUATION_JOB_TIMEOUT", 2*time.Minute),
			LockTTL:     getenvDuration("EVALUATION_LOCK_TTL", 30*time.Second),
			EnabledJobs: parseList(getenv("EVALUATION_ENABLED_JOBS", "")),
		},
		Outbox: OutboxConfig{
			Workers:       getenvInt("OUTBOX_WORKERS", 4),
			BatchSize:     getenvInt("OUTBOX_BATCH_SIZE", 50),
			PollInterval:  getenvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
			RatePerSecond: getenvFloat("OUTBOX_RATE_PER_SECOND", 20),
			MaxAttempts:   getenvInt("OUTBOX_MAX_ATTEMPTS", 5),
		},
		RateLimit: RateLimitConfig{
			ActionRate:  getenvFloat("ADMIN_ACTION_RATE", 1),
			ActionBurst: getenvInt("ADMIN_ACTION_BURST", 10),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
