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

	Exchange ExchangeConfig
}

// ExchangeConfig controls transport endpoints and delivery behavior.
// Endpoints are held per network partition; the partition itself is an
// explicit argument on every coordinator call, never read from here.
type ExchangeConfig struct {
	Sandbox    AccessPointConfig
	Production AccessPointConfig

	MaxAttempts      int
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	DispatchInterval time.Duration
	PollInterval     time.Duration
	DispatchBatch    int
}

// AccessPointConfig identifies one access-point endpoint.
type AccessPointConfig struct {
	Endpoint string
	APIKey   string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "peppolway"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Exchange: ExchangeConfig{
			Sandbox: AccessPointConfig{
				Endpoint: getenv("ACCESS_POINT_SANDBOX_ENDPOINT", "https://sandbox.accesspoint.invalid"),
				APIKey:   strings.TrimSpace(getenv("ACCESS_POINT_SANDBOX_API_KEY", "")),
			},
			Production: AccessPointConfig{
				Endpoint: getenv("ACCESS_POINT_PRODUCTION_ENDPOINT", ""),
				APIKey:   strings.TrimSpace(getenv("ACCESS_POINT_PRODUCTION_API_KEY", "")),
			},
			MaxAttempts:      getenvInt("EXCHANGE_MAX_ATTEMPTS", 5),
			BackoffInitial:   getenvDuration("EXCHANGE_BACKOFF_INITIAL", 30*time.Second),
			BackoffMax:       getenvDuration("EXCHANGE_BACKOFF_MAX", 30*time.Minute),
			DispatchInterval: getenvDuration("EXCHANGE_DISPATCH_INTERVAL", 15*time.Second),
			PollInterval:     getenvDuration("EXCHANGE_POLL_INTERVAL", time.Minute),
			DispatchBatch:    getenvInt("EXCHANGE_DISPATCH_BATCH", 50),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
