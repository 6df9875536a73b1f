package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Supported storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Environment Environment

	// Server configuration
	ServerPort   string
	ServerHost   string
	TemplatesDir string
	DefaultPage  string
	CORSOrigins  []string

	// Database configuration
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// JWT configuration
	JWTSecret string

	// Food images
	S3Bucket  string
	AWSRegion string

	// External food data
	OpenFoodFactsURL string
	LookupCacheTTL   time.Duration

	// Rate limiting of the dispatch endpoint, per user or client IP
	RateLimit       int
	RateLimitWindow time.Duration

	// Timezone used to decide which calendar day a meal belongs to
	Timezone string
}

// LoadConfig creates a new Config instance with values from .env, environment variables or secrets
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	env := GetEnvironment()
	cfg := &Config{Environment: env}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s configuration: %w", env, err)
	}

	// Production keeps credentials in Docker secrets, which win over plain variables
	if env.IsProduction() {
		loadSecrets(cfg)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	cfg.ServerPort = getEnv("SERVER_PORT", "8080")
	cfg.ServerHost = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.TemplatesDir = getEnv("TEMPLATES_DIR", "")
	cfg.DefaultPage = getEnv("DEFAULT_PAGE", "dashboard")
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))

	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", DriverPostgres))
	cfg.DBHost = getEnv("DB_HOST", "localhost")
	cfg.DBPort = getEnv("DB_PORT", "5432")
	cfg.DBUser = getEnv("DB_USER", "postgres")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnv("DB_NAME", "nutrilog")
	cfg.DBSSLMode = getEnv("DB_SSL_MODE", "disable")
	cfg.SQLitePath = getEnv("SQLITE_PATH", "nutrilog.db")

	cfg.RedisHost = os.Getenv("REDIS_HOST")
	cfg.RedisPort = getEnv("REDIS_PORT", "6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.S3Bucket = os.Getenv("S3_BUCKET_NAME")
	cfg.AWSRegion = getEnv("AWS_REGION", "eu-west-3")

	cfg.OpenFoodFactsURL = getEnv("OPENFOODFACTS_URL", "https://world.openfoodfacts.org")
	ttl, err := time.ParseDuration(getEnv("LOOKUP_CACHE_TTL", "24h"))
	if err != nil {
		return fmt.Errorf("invalid LOOKUP_CACHE_TTL: %w", err)
	}
	cfg.LookupCacheTTL = ttl

	limit, err := strconv.Atoi(getEnv("RATE_LIMIT", "120"))
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}
	cfg.RateLimit = limit
	window, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}
	cfg.RateLimitWindow = window

	cfg.Timezone = getEnv("APP_TIMEZONE", "UTC")
	return nil
}

func loadSecrets(cfg *Config) {
	if v := readSecret("db_password"); v != "" {
		cfg.DBPassword = v
	}
	if v := readSecret("jwt_secret"); v != "" {
		cfg.JWTSecret = v
	}
	if v := readSecret("redis_password"); v != "" {
		cfg.RedisPassword = v
	}
	if v := readSecret("redis_url"); v != "" {
		cfg.RedisURL = v
	}
}

// Location returns the time zone that defines calendar days.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RedisEnabled reports whether a Redis server has been configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
