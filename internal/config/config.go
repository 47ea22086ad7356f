package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultMongoURI = "mongodb://localhost:27017/apparel-tracker"

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port     string
	Env      string
	Timezone *time.Location

	Auth   AuthConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	S3     S3Config
	CORS   CORSConfig
	Worker WorkerConfig
}

// AuthConfig contains token signing and password hashing parameters.
type AuthConfig struct {
	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int
}

// MongoConfig contains MongoDB connection parameters.
type MongoConfig struct {
	URI            string
	Database       string
	QueryTimeout   time.Duration
	MigrationsPath string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	// DashboardTTL bounds how long a dashboard projection is served from cache.
	DashboardTTL time.Duration
}

// S3Config contains the bucket used for product images.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// CORSConfig lists the origins the SPA is served from.
type CORSConfig struct {
	AllowedOrigins []string
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	LowStockReconcileInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first.
func Load() (*Config, error) {
	// Missing .env is fine; production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "5000")
	cfg.Env = getEnv("ENV", "development")

	loc, err := time.LoadLocation(getEnv("STORE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	// Auth
	cfg.Auth = AuthConfig{
		JWTSecret:  getEnv("JWT_SECRET", ""),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),
	}
	if cfg.Auth.JWTExpiry, err = parseDurationEnv("JWT_EXPIRY", "168h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY: %w", err)
	}

	// MongoDB
	cfg.Mongo = MongoConfig{
		URI:            getEnv("MONGODB_URI", defaultMongoURI),
		MigrationsPath: getEnv("MONGO_MIGRATIONS_PATH", "file://migrations"),
	}
	cfg.Mongo.Database = getEnv("MONGO_DATABASE", databaseFromURI(cfg.Mongo.URI))
	if cfg.Mongo.QueryTimeout, err = parseDurationEnv("MONGO_QUERY_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid MONGO_QUERY_TIMEOUT: %w", err)
	}

	// Redis
	cfg.Redis = RedisConfig{
		Enabled:  getEnvBool("REDIS_ENABLED", true),
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
	if cfg.Redis.DashboardTTL, err = parseDurationEnv("DASHBOARD_CACHE_TTL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_CACHE_TTL: %w", err)
	}

	// S3 (product images)
	cfg.S3 = S3Config{
		Region:          getEnv("S3_REGION", "us-east-1"),
		Bucket:          getEnv("S3_BUCKET", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	// Workers (durations)
	if cfg.Worker.LowStockReconcileInterval, err = parseDurationEnv("LOW_STOCK_RECONCILE_INTERVAL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid LOW_STOCK_RECONCILE_INTERVAL: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}
	if cfg.Auth.BcryptCost < 10 {
		return nil, errors.New("BCRYPT_COST must be at least 10")
	}
	if cfg.Mongo.Database == "" {
		return nil, errors.New("database name missing: set MONGO_DATABASE or include it in MONGODB_URI")
	}

	return cfg, nil
}

// databaseFromURI extracts the database name from the path of a mongodb URI.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "apparel-tracker"
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return "apparel-tracker"
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
