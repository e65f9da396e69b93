package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentTest        = "test"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Stripe    StripeConfig
	SMTP      SMTPConfig
	OpenFGA   OpenFGAConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the postgres:// form used by golang-migrate.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret         string
	JWTExpiration     time.Duration
	SessionExpiration time.Duration
	CredentialSecret  string
	PasswordMinLength int
}

type StorageConfig struct {
	Enabled bool
	Bucket  string
	Region  string
}

type StripeConfig struct {
	Enabled    bool
	APIKey     string
	SuccessURL string
	CancelURL  string
}

type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type OpenFGAConfig struct {
	Enabled  bool
	APIHost  string
	APIToken string
	StoreID  string
	ModelID  string
}

type TelemetryConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "3000"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  getEnv("SERVER_ENVIRONMENT", EnvironmentDevelopment),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "raceday"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("AUTH_JWT_SECRET", "dev-secret-change-me"),
			JWTExpiration:     getEnvDuration("AUTH_JWT_EXPIRATION", 24*time.Hour),
			SessionExpiration: getEnvDuration("AUTH_SESSION_EXPIRATION", 30*24*time.Hour),
			CredentialSecret:  getEnv("AUTH_CREDENTIAL_SECRET", "dev-credential-secret"),
			PasswordMinLength: getEnvInt("AUTH_PASSWORD_MIN_LENGTH", 8),
		},
		Storage: StorageConfig{
			Enabled: getEnvBool("STORAGE_ENABLED", false),
			Bucket:  getEnv("STORAGE_BUCKET", "raceday-credentials"),
			Region:  getEnv("STORAGE_REGION", "eu-west-1"),
		},
		Stripe: StripeConfig{
			Enabled:    getEnvBool("STRIPE_ENABLED", false),
			APIKey:     getEnv("STRIPE_API_KEY", ""),
			SuccessURL: getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/runner-dashboard?checkout=success"),
			CancelURL:  getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/runner-dashboard?checkout=cancel"),
		},
		SMTP: SMTPConfig{
			Enabled:  getEnvBool("SMTP_ENABLED", false),
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@raceday.local"),
		},
		OpenFGA: OpenFGAConfig{
			Enabled:  getEnvBool("OPENFGA_ENABLED", false),
			APIHost:  getEnv("OPENFGA_API_HOST", "localhost:8080"),
			APIToken: getEnv("OPENFGA_API_TOKEN", ""),
			StoreID:  getEnv("OPENFGA_STORE_ID", ""),
			ModelID:  getEnv("OPENFGA_MODEL_ID", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("OTEL_ENABLED", false),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "raceday"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("SERVER_ENVIRONMENT", EnvironmentDevelopment),
		},
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
