package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	DatabaseURL string
	RedisURL    string

	CartCacheTTL        time.Duration
	ProductCacheTTL     time.Duration
	UserCacheTTL        time.Duration
	MemoryCacheCapacity int

	StorageBucket string
	CORSOrigins   []string

	ShutdownTimeout time.Duration
}

func LoadEnv() error {
	// A missing .env is fine: in production the variables are set directly.
	if err := godotenv.Load(); err != nil {
		return nil
	}
	return nil
}

// ValidateEnv checks that critical environment variables are set.
// Returns an error if any critical variable is missing.
func ValidateEnv() error {
	var missing []string

	if os.Getenv("JWT_SECRET") == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if os.Getenv("DATABASE_URL") == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	if os.Getenv("REDIS_URL") == "" {
		slog.Warn("REDIS_URL not set - falling back to in-process cache")
	}
	if os.Getenv("FIREBASE_STORAGE_BUCKET") == "" {
		slog.Warn("FIREBASE_STORAGE_BUCKET not set - product image uploads will fail")
	}
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		slog.Warn("GOOGLE_APPLICATION_CREDENTIALS not set - Firebase features may not work")
	}
	if os.Getenv("FRONTEND_URL") == "" {
		slog.Warn("FRONTEND_URL not set - CORS may not work correctly")
	}

	return nil
}

// Load reads the typed configuration. Call LoadEnv first so .env values are visible.
func Load() Config {
	return Config{
		AppEnv:   GetEnv("APP_ENV", "dev"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),
		Port:     GetEnv("PORT", "8080"),

		DatabaseURL: GetEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=storefront port=5432 sslmode=disable"),
		RedisURL:    os.Getenv("REDIS_URL"),

		CartCacheTTL:        GetEnvDuration("CART_CACHE_TTL", 300*time.Second),
		ProductCacheTTL:     GetEnvDuration("PRODUCT_CACHE_TTL", 300*time.Second),
		UserCacheTTL:        GetEnvDuration("USER_CACHE_TTL", 60*time.Second),
		MemoryCacheCapacity: GetEnvInt("MEMORY_CACHE_CAPACITY", 10000),

		StorageBucket: os.Getenv("FIREBASE_STORAGE_BUCKET"),
		CORSOrigins:   corsOrigins(),

		ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func corsOrigins() []string {
	var origins []string
	for _, key := range []string{"FRONTEND_URL", "ADMIN_URL"} {
		if o := os.Getenv(key); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
