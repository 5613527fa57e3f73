package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Redis     RedisConfig
	Secrets   SecretsConfig
	Recurring RecurringConfig
	Cron      CronConfig
	Logger    LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// GatewayConfig holds DPO gateway configuration
type GatewayConfig struct {
	CompanyToken string // Shared merchant credential; may be resolved via Secrets
	ServiceType  string // Gateway-assigned service type code
	APIURL       string
	TestAPIURL   string
	TestMode     bool
	Timeout      time.Duration
	RedirectURL  string // Hosted checkout success return URL
	BackURL      string // Hosted checkout cancel return URL
	PTL          int    // Token time-to-live in hours

	// ChargeImmediately asks the gateway to charge recurring tokens at
	// creation instead of on the first billing date
	ChargeImmediately bool

	// AllowedCallbackIPs restricts webhook callbacks; empty allows any
	AllowedCallbackIPs []string

	// SuccessURL and FailureURL are the merchant pages the browser is sent to
	// after returning from hosted checkout. Empty means respond with JSON.
	SuccessURL string
	FailureURL string
}

// RedisConfig holds Redis configuration. An empty URL disables caching.
type RedisConfig struct {
	URL             string
	BalanceCacheTTL time.Duration
}

// SecretsConfig selects the secret backend
type SecretsConfig struct {
	// Provider is "aws" or "env"
	Provider string
	Region   string
	Endpoint string

	// CompanyTokenPath is the secret path holding the gateway company token.
	// Empty means the token comes straight from DPO_COMPANY_TOKEN.
	CompanyTokenPath string
}

// RecurringConfig holds recurring billing configuration
type RecurringConfig struct {
	MaxRetryAttempts int
	BatchSize        int
}

// CronConfig holds the shared secret protecting cron endpoints
type CronConfig struct {
	Secret string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "dpo_payment_service"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Gateway: GatewayConfig{
			CompanyToken:       getEnv("DPO_COMPANY_TOKEN", ""),
			ServiceType:        getEnv("DPO_SERVICE_TYPE", ""),
			APIURL:             getEnv("DPO_API_URL", "https://secure.3gdirectpay.com"),
			TestAPIURL:         getEnv("DPO_TEST_API_URL", "https://secure1.sandbox.directpay.online"),
			TestMode:           getEnvAsBool("DPO_TEST_MODE", true),
			Timeout:            getEnvAsDuration("DPO_TIMEOUT", 30*time.Second),
			RedirectURL:        getEnv("DPO_REDIRECT_URL", ""),
			BackURL:            getEnv("DPO_BACK_URL", ""),
			PTL:                getEnvAsInt("DPO_PTL_HOURS", 24),
			ChargeImmediately:  getEnvAsBool("DPO_CHARGE_IMMEDIATELY", false),
			AllowedCallbackIPs: getEnvAsSlice("DPO_ALLOWED_CALLBACK_IPS"),
			SuccessURL:         getEnv("DPO_SUCCESS_URL", ""),
			FailureURL:         getEnv("DPO_FAILURE_URL", ""),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", ""),
			BalanceCacheTTL: getEnvAsDuration("BALANCE_CACHE_TTL", 5*time.Minute),
		},
		Secrets: SecretsConfig{
			Provider:         getEnv("SECRETS_PROVIDER", "env"),
			Region:           getEnv("AWS_REGION", "af-south-1"),
			Endpoint:         getEnv("AWS_SECRETS_ENDPOINT", ""),
			CompanyTokenPath: getEnv("DPO_COMPANY_TOKEN_SECRET_PATH", ""),
		},
		Recurring: RecurringConfig{
			MaxRetryAttempts: getEnvAsInt("RECURRING_MAX_RETRY_ATTEMPTS", 3),
			BatchSize:        getEnvAsInt("RECURRING_BATCH_SIZE", 100),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Gateway.CompanyToken == "" && cfg.Secrets.CompanyTokenPath == "" {
		return nil, fmt.Errorf("DPO_COMPANY_TOKEN or DPO_COMPANY_TOKEN_SECRET_PATH is required")
	}
	if cfg.Gateway.ServiceType == "" {
		return nil, fmt.Errorf("DPO_SERVICE_TYPE is required")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
