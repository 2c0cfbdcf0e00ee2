package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	Environment   string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	Booking  BookingConfig
	Jobs     JobsConfig
	Realtime RealtimeConfig
}

type BookingConfig struct {
	ExpirationAge   time.Duration // pending bookings older than this are expired
	PaymentDueAge   time.Duration // awaiting-payment bookings older than this get a reminder
	LowStockMinimum int
}

type JobsConfig struct {
	BookingExpirationCron string
	PaymentReminderCron   string
	LowStockDigestCron    string
	CronTimezone          string
	LockTTL               time.Duration
	LockTTLPerJob         map[string]time.Duration
	LockPrefix            string
	LockFailOpen          bool
	LockDisabled          bool
}

type RealtimeConfig struct {
	MaxConnectionsPerUser int
	MaxTotalConnections   int
	HeartbeatInterval     time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		Environment:   getEnv("APP_ENV", "development"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "localmart"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		Booking: BookingConfig{
			ExpirationAge:   time.Duration(getEnvAsInt("BOOKING_EXPIRATION_HOURS", 48)) * time.Hour,
			PaymentDueAge:   time.Duration(getEnvAsInt("PAYMENT_REMINDER_HOURS", 24)) * time.Hour,
			LowStockMinimum: getEnvAsInt("LOW_STOCK_THRESHOLD", 5),
		},
		Jobs: JobsConfig{
			BookingExpirationCron: getEnv("BOOKING_EXPIRATION_CRON", "*/15 * * * *"),
			PaymentReminderCron:   getEnv("PAYMENT_REMINDER_CRON", "0 * * * *"),
			LowStockDigestCron:    getEnv("LOW_STOCK_DIGEST_CRON", "0 8 * * *"),
			CronTimezone:          getEnv("CRON_TZ", "UTC"),
			LockTTL:               getEnvAsMillis("JOB_LOCK_TTL_MS", 5*time.Minute),
			LockTTLPerJob:         loadPerJobLockTTLs(),
			LockPrefix:            getEnv("JOB_LOCK_PREFIX", "joblock:"),
			LockFailOpen:          getEnvAsBool("JOB_LOCK_FAIL_OPEN", false),
			LockDisabled:          getEnvAsBool("DISABLE_JOB_LOCK", false),
		},
		Realtime: RealtimeConfig{
			MaxConnectionsPerUser: getEnvAsInt("SSE_MAX_PER_USER", 5),
			MaxTotalConnections:   getEnvAsInt("SSE_MAX_TOTAL", 10000),
			HeartbeatInterval:     getEnvAsMillis("SSE_HEARTBEAT_MS", 30*time.Second),
		},
	}
}

// IsProduction reports whether the process runs with production semantics.
// The job lock falls back to fail-closed in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// loadPerJobLockTTLs reads JOB_LOCK_TTL_MS_<JOB> overrides, e.g.
// JOB_LOCK_TTL_MS_BOOKING_EXPIRATION=60000.
func loadPerJobLockTTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration)
	const prefix = "JOB_LOCK_TTL_MS_"
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		ms, err := strconv.Atoi(value)
		if err != nil || ms <= 0 {
			continue
		}
		jobName := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, prefix), "_", "-"))
		ttls[jobName] = time.Duration(ms) * time.Millisecond
	}
	return ttls
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsMillis(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil && value > 0 {
		return time.Duration(value) * time.Millisecond
	}
	return fallback
}
