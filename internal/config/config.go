package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// MigrationsPath is the golang-migrate source URL for the SQL scripts.
	MigrationsPath string

	// Auth
	InternalAPIKey string
	JWTSecret      string

	// Linking
	LinkTokenTTL              time.Duration
	SubscriptionCheckInterval time.Duration

	Backfill BackfillConfig
}

// BackfillConfig describes the one-time single-tenant to multi-tenant backfill.
type BackfillConfig struct {
	PrimaryGuildID   int64
	Guilds           map[int64]string
	RoleOverrides    map[int64]int64
	ChannelOverrides map[int64]int64
	DefaultOwner     string
	OwnerOverrides   map[int64]string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "felbot"),
		DBPassword: getEnv("DB_PASSWORD", "felbot"),
		DBName:     getEnv("DB_NAME", "felbot"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),

		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
	}
	if config.JWTSecret == "" && config.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	config.LinkTokenTTL = getDuration("LINK_TOKEN_TTL", 15*time.Minute)
	config.SubscriptionCheckInterval = getDuration("SUBSCRIPTION_CHECK_INTERVAL", 24*time.Hour)

	backfill, err := loadBackfill()
	if err != nil {
		return nil, err
	}
	config.Backfill = backfill

	return config, nil
}

func loadBackfill() (BackfillConfig, error) {
	var cfg BackfillConfig
	var err error

	if raw := getEnv("BACKFILL_PRIMARY_GUILD_ID", ""); raw != "" {
		cfg.PrimaryGuildID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid BACKFILL_PRIMARY_GUILD_ID: %w", err)
		}
	}

	if cfg.Guilds, err = ParseIDStringPairs(getEnv("BACKFILL_GUILDS", "")); err != nil {
		return cfg, fmt.Errorf("invalid BACKFILL_GUILDS: %w", err)
	}
	if cfg.RoleOverrides, err = ParseIDPairs(getEnv("BACKFILL_ROLE_OVERRIDES", "")); err != nil {
		return cfg, fmt.Errorf("invalid BACKFILL_ROLE_OVERRIDES: %w", err)
	}
	if cfg.ChannelOverrides, err = ParseIDPairs(getEnv("BACKFILL_CHANNEL_OVERRIDES", "")); err != nil {
		return cfg, fmt.Errorf("invalid BACKFILL_CHANNEL_OVERRIDES: %w", err)
	}
	if cfg.OwnerOverrides, err = ParseIDStringPairs(getEnv("BACKFILL_OWNER_OVERRIDES", "")); err != nil {
		return cfg, fmt.Errorf("invalid BACKFILL_OWNER_OVERRIDES: %w", err)
	}
	cfg.DefaultOwner = getEnv("BACKFILL_DEFAULT_OWNER", "")

	return cfg, nil
}

// ParseIDPairs parses "1:100,2:200" into {1: 100, 2: 200}.
func ParseIDPairs(raw string) (map[int64]int64, error) {
	strs, err := ParseIDStringPairs(raw)
	if err != nil {
		return nil, err
	}

	pairs := make(map[int64]int64, len(strs))
	for key, value := range strs {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q for %d: %w", value, key, err)
		}
		pairs[key] = id
	}
	return pairs, nil
}

// ParseIDStringPairs parses "100:main,200:test" into {100: "main", 200: "test"}.
func ParseIDStringPairs(raw string) (map[int64]string, error) {
	pairs := make(map[int64]string)
	if strings.TrimSpace(raw) == "" {
		return pairs, nil
	}

	for _, item := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok || value == "" {
			return nil, fmt.Errorf("malformed pair %q", item)
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if _, dup := pairs[id]; dup {
			return nil, fmt.Errorf("duplicate key %d", id)
		}
		pairs[id] = value
	}
	return pairs, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, defaultValue.String())
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
