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
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	Ledger      LedgerConfig
	Rewards     RewardsConfig
	RateLimit   RateLimitConfig
	MetricsPush MetricsPushConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMigrate         bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL    string
	NATSBucket string

	TiersFile string
}

// LedgerConfig selects and tunes the matching pool ledger store.
type LedgerConfig struct {
	Backend     string
	Key         string
	FilePath    string
	CASAttempts int
	Lock        string
	LockTTL     time.Duration
	LockWait    time.Duration
}

// RewardsConfig converts donation amounts into points and coins.
type RewardsConfig struct {
	PointsPerUnit int64
	CoinsPerUnit  int64
}

// RateLimitConfig throttles donation intake per donor.
type RateLimitConfig struct {
	Enabled    bool
	DonorRate  float64
	DonorBurst int
}

// MetricsPushConfig ships the Prometheus registry to a remote collector.
// An empty Exporter disables pushing.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

const (
	LedgerBackendMemory = "memory"
	LedgerBackendFile   = "file"
	LedgerBackendSQL    = "sql"
	LedgerBackendRedis  = "redis"
	LedgerBackendNATS   = "nats"

	LedgerLockNone  = "none"
	LedgerLockRedis = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "sadaqah"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Ledger: LedgerConfig{
			Backend:     normalizeBackend(getenv("LEDGER_BACKEND", LedgerBackendSQL)),
			Key:         strings.TrimSpace(getenv("LEDGER_KEY", "matching_pool")),
			FilePath:    getenv("LEDGER_FILE_PATH", "data/matching_pool.json"),
			CASAttempts: getenvInt("LEDGER_CAS_ATTEMPTS", 5),
			Lock:        strings.ToLower(strings.TrimSpace(getenv("LEDGER_LOCK", LedgerLockNone))),
			LockTTL:     getenvDuration("LEDGER_LOCK_TTL", 5*time.Second),
			LockWait:    getenvDuration("LEDGER_LOCK_WAIT", 2*time.Second),
		},
		Rewards: RewardsConfig{
			PointsPerUnit: getenvInt64("POINTS_PER_UNIT", 10),
			CoinsPerUnit:  getenvInt64("COINS_PER_UNIT", 1),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", false),
			DonorRate:  getenvFloat("RATE_LIMIT_DONOR_RATE", 1),
			DonorBurst: getenvInt("RATE_LIMIT_DONOR_BURST", 5),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_TOKEN", "")),
			Interval:  getenvDuration("METRICS_PUSH_INTERVAL", 15*time.Second),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "sadaqah"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "sadaqah.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBMigrate:         getenvBool("DATABASE_MIGRATE", true),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		NATSURL:           strings.TrimSpace(getenv("NATS_URL", "nats://localhost:4222")),
		NATSBucket:        strings.TrimSpace(getenv("NATS_BUCKET", "SADAQAH_LEDGER")),
		TiersFile:         strings.TrimSpace(getenv("TIERS_FILE", "")),
	}
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case LedgerBackendMemory, LedgerBackendFile, LedgerBackendSQL, LedgerBackendRedis, LedgerBackendNATS:
		return value
	case "postgres", "mysql", "sqlite", "db":
		return LedgerBackendSQL
	default:
		return LedgerBackendSQL
	}
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
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
