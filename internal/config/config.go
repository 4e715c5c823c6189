package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Reply        ReplyConfig
	Storage      StorageConfig
	Attachments  AttachmentConfig
	Minio        MinioConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitBytes        int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr keeps dedup state in process.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	RegistrationEnabled   bool
}

// ReplyConfig tunes the reply submission gate.
type ReplyConfig struct {
	DedupWindowMillis       int
	LockTTLSeconds          int
	AllowCustomerOnResolved bool
}

// StorageConfig bounds retries against the backing store.
type StorageConfig struct {
	MaxRetries             int
	RetryInitialMillis     int
	RetryMaxIntervalMillis int
}

// AttachmentConfig limits customer uploads.
type AttachmentConfig struct {
	MaxCount     int
	MaxSizeBytes int64
}

// MinioConfig points at the attachment bucket. An empty Endpoint keeps uploads in memory.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitBytes:        getEnvAsInt("HTTP_BODY_LIMIT_BYTES", 32*1024*1024),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "support-desk:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			RegistrationEnabled:   getEnvAsBool("AUTH_REGISTRATION_ENABLED", false),
		},
		Reply: ReplyConfig{
			DedupWindowMillis:       getEnvAsInt("REPLY_DEDUP_WINDOW_MS", 2000),
			LockTTLSeconds:          getEnvAsInt("REPLY_LOCK_TTL_SECONDS", 10),
			AllowCustomerOnResolved: getEnvAsBool("REPLY_ALLOW_CUSTOMER_ON_RESOLVED", true),
		},
		Storage: StorageConfig{
			MaxRetries:             getEnvAsInt("STORAGE_MAX_RETRIES", 3),
			RetryInitialMillis:     getEnvAsInt("STORAGE_RETRY_INITIAL_MS", 50),
			RetryMaxIntervalMillis: getEnvAsInt("STORAGE_RETRY_MAX_INTERVAL_MS", 1000),
		},
		Attachments: AttachmentConfig{
			MaxCount:     getEnvAsInt("ATTACHMENTS_MAX_COUNT", 5),
			MaxSizeBytes: int64(getEnvAsInt("ATTACHMENTS_MAX_SIZE_BYTES", 5*1024*1024)),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "ticket-attachments"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DedupWindow returns how long an accepted reply suppresses identical resubmissions.
func (r ReplyConfig) DedupWindow() time.Duration {
	if r.DedupWindowMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(r.DedupWindowMillis) * time.Millisecond
}

// LockTTL bounds how long an in-flight marker survives a crashed holder.
func (r ReplyConfig) LockTTL() time.Duration {
	if r.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// RetryInitial returns the first backoff interval.
func (s StorageConfig) RetryInitial() time.Duration {
	if s.RetryInitialMillis <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(s.RetryInitialMillis) * time.Millisecond
}

// RetryMaxInterval caps a single backoff interval.
func (s StorageConfig) RetryMaxInterval() time.Duration {
	if s.RetryMaxIntervalMillis <= 0 {
		return time.Second
	}
	return time.Duration(s.RetryMaxIntervalMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
