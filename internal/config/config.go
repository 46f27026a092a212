package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// OTP store drivers.
const (
	OTPDriverMemory = "memory"
	OTPDriverRedis  = "redis"
)

// Notifier drivers.
const (
	NotifyDriverLog     = "log"
	NotifyDriverSMTP    = "smtp"
	NotifyDriverWebhook = "webhook"
)

// Blob store drivers.
const (
	BlobDriverLocal  = "local"
	BlobDriverGridFS = "gridfs"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	OTP          OTPConfig
	Notification NotificationConfig
	Blob         BlobConfig
	Issues       IssuesConfig
	RateLimit    RateLimitConfig
	Bootstrap    BootstrapConfig
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

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// MongoConfig holds MongoDB connection values.
type MongoConfig struct {
	URI               string
	Database          string
	ConnectTimeoutSec int
}

// RedisConfig holds Redis connection values. Addr may list several
// comma-separated nodes, which selects a cluster client.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	DialTimeoutSec int
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
}

// OTPConfig controls verification code tickets.
type OTPConfig struct {
	Driver       string
	TTLMinutes   int
	SweepSeconds int
	KeyPrefix    string
}

// NotificationConfig selects and configures the outbound notifier.
type NotificationConfig struct {
	Driver       string
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	WebhookURL   string
}

// BlobConfig configures evidence image storage.
type BlobConfig struct {
	Driver        string
	UploadDir     string
	PublicBaseURL string
	MaxBytes      int
	GridFSBucket  string
}

// IssuesConfig holds issue workflow defaults.
type IssuesConfig struct {
	DefaultAnonymousZone string
}

// RateLimitConfig throttles OTP requests per client.
type RateLimitConfig struct {
	OTPPerHour int
	KeyPrefix  string
}

// BootstrapConfig seeds the first admin account on startup when Email is set.
type BootstrapConfig struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// Enabled reports whether an admin account should be ensured.
func (b BootstrapConfig) Enabled() bool {
	return b.AdminEmail != ""
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "spot-sort-issue-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Mongo: MongoConfig{
			URI:               os.Getenv("MONGO_URI"),
			Database:          getEnv("MONGO_DATABASE", "spotandsort"),
			ConnectTimeoutSec: getEnvAsInt("MONGO_CONNECT_TIMEOUT_SECONDS", 10),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			PoolSize:       getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeoutSec: getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		OTP: OTPConfig{
			Driver:       strings.ToLower(getEnv("OTP_DRIVER", OTPDriverMemory)),
			TTLMinutes:   getEnvAsInt("OTP_TTL_MINUTES", 10),
			SweepSeconds: getEnvAsInt("OTP_SWEEP_SECONDS", 60),
			KeyPrefix:    getEnv("OTP_KEY_PREFIX", "otp:ticket:"),
		},
		Notification: NotificationConfig{
			Driver:       strings.ToLower(getEnv("NOTIFY_DRIVER", NotifyDriverLog)),
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@spotandsort.local"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Blob: BlobConfig{
			Driver:        strings.ToLower(getEnv("BLOB_DRIVER", BlobDriverLocal)),
			UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:5000"),
			MaxBytes:      getEnvAsInt("UPLOAD_MAX_BYTES", 1_000_000),
			GridFSBucket:  getEnv("GRIDFS_BUCKET", "evidence"),
		},
		Issues: IssuesConfig{
			DefaultAnonymousZone: getEnv("DEFAULT_ANONYMOUS_ZONE", "Central"),
		},
		RateLimit: RateLimitConfig{
			OTPPerHour: getEnvAsInt("RATE_LIMIT_OTP_PER_HOUR", 5),
			KeyPrefix:  getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit:otp:"),
		},
		Bootstrap: BootstrapConfig{
			AdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
			AdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.OTP.Driver {
	case OTPDriverMemory, OTPDriverRedis:
	default:
		return fmt.Errorf("invalid OTP_DRIVER %q", c.OTP.Driver)
	}
	switch c.Notification.Driver {
	case NotifyDriverLog, NotifyDriverSMTP, NotifyDriverWebhook:
	default:
		return fmt.Errorf("invalid NOTIFY_DRIVER %q", c.Notification.Driver)
	}
	switch c.Blob.Driver {
	case BlobDriverLocal:
	case BlobDriverGridFS:
		if c.Store.Driver != StoreDriverMongo && c.Mongo.URI == "" {
			return fmt.Errorf("BLOB_DRIVER=gridfs requires MONGO_URI")
		}
	default:
		return fmt.Errorf("invalid BLOB_DRIVER %q", c.Blob.Driver)
	}
	if c.Bootstrap.Enabled() && c.Bootstrap.AdminPassword == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD is required when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	if c.OTP.TTLMinutes <= 0 {
		return fmt.Errorf("OTP_TTL_MINUTES must be positive")
	}
	return nil
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

// TTL returns the OTP ticket lifetime.
func (o OTPConfig) TTL() time.Duration {
	return time.Duration(o.TTLMinutes) * time.Minute
}

// Addrs splits Addr into its node addresses.
func (r RedisConfig) Addrs() []string {
	var addrs []string
	for _, addr := range strings.Split(r.Addr, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// DialTimeout returns the connect timeout for each Redis node.
func (r RedisConfig) DialTimeout() time.Duration {
	if r.DialTimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.DialTimeoutSec) * time.Second
}

// SweepInterval returns how often expired in-memory tickets are reclaimed.
func (o OTPConfig) SweepInterval() time.Duration {
	if o.SweepSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(o.SweepSeconds) * time.Second
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
