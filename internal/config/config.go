package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Identity     IdentityConfig
	Backend      BackendConfig
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
}

// PostgresConfig holds local mirror connection values. An empty DSN selects the
// in-memory mirror.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
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

// IdentityConfig points at the identity provider. Without ProviderURL the service runs
// its own development provider signed with JWTSecret.
type IdentityConfig struct {
	ProviderURL           string
	APIKey                string
	JWTSecret             string
	AccessTokenTTLMinutes int
	OneTimeCodeTTLMinutes int
	BcryptCost            int
	CacheSize             int
	CacheTTLSeconds       int
}

// BackendConfig describes the external dinner backend.
type BackendConfig struct {
	APIURL                 string
	RequestTimeoutSeconds  int
	AdvisoryTimeoutSeconds int
	HostBio                string
}

// NotificationConfig holds notification endpoints.
type NotificationConfig struct {
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
			Name:                  getEnv("APP_NAME", "dinewithus-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "dinewithus"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Identity: IdentityConfig{
			ProviderURL:           strings.TrimRight(os.Getenv("IDENTITY_PROVIDER_URL"), "/"),
			APIKey:                os.Getenv("IDENTITY_API_KEY"),
			JWTSecret:             getEnv("IDENTITY_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("IDENTITY_ACCESS_TOKEN_TTL_MINUTES", 60),
			OneTimeCodeTTLMinutes: getEnvAsInt("IDENTITY_OTP_TTL_MINUTES", 10),
			BcryptCost:            getEnvAsInt("IDENTITY_BCRYPT_COST", 10),
			CacheSize:             getEnvAsInt("IDENTITY_CACHE_SIZE", 1024),
			CacheTTLSeconds:       getEnvAsInt("IDENTITY_CACHE_TTL_SECONDS", 30),
		},
		Backend: BackendConfig{
			APIURL:                 strings.TrimRight(os.Getenv("BACKEND_API_URL"), "/"),
			RequestTimeoutSeconds:  getEnvAsInt("BACKEND_REQUEST_TIMEOUT_SECONDS", 15),
			AdvisoryTimeoutSeconds: getEnvAsInt("BACKEND_ADVISORY_TIMEOUT_SECONDS", 5),
			HostBio:                getEnv("BACKEND_HOST_BIO", "I am a new host on DineWithUs!"),
		},
		Notification: NotificationConfig{
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
	return seconds(a.RequestTimeoutSeconds)
}

// Development reports whether the service runs outside production.
func (a AppConfig) Development() bool {
	return a.Env != "production"
}

// LocalProvider reports whether the built-in development identity provider is used.
func (i IdentityConfig) LocalProvider() bool {
	return i.ProviderURL == ""
}

// AccessTokenTTL returns the lifetime of tokens issued by the development provider.
func (i IdentityConfig) AccessTokenTTL() time.Duration {
	return minutes(i.AccessTokenTTLMinutes, 60)
}

// OneTimeCodeTTL returns the lifetime of sign-in codes.
func (i IdentityConfig) OneTimeCodeTTL() time.Duration {
	return minutes(i.OneTimeCodeTTLMinutes, 10)
}

// CacheTTL returns how long a verified token lookup is reused.
func (i IdentityConfig) CacheTTL() time.Duration {
	return seconds(i.CacheTTLSeconds)
}

// Configured reports whether the backend base URL is set.
func (b BackendConfig) Configured() bool {
	return b.APIURL != ""
}

// RequestTimeout bounds proxied backend calls.
func (b BackendConfig) RequestTimeout() time.Duration {
	return seconds(b.RequestTimeoutSeconds)
}

// AdvisoryTimeout bounds each best-effort backend call made during role changes.
func (b BackendConfig) AdvisoryTimeout() time.Duration {
	if b.AdvisoryTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return seconds(b.AdvisoryTimeoutSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func minutes(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Minute
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
