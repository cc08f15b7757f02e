package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/carelinkhq/carelink/internal/auth/guard"
	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/carelinkhq/carelink/pkg/jwtx"
)

type Config struct {
	Issuer   string   // Issuer claim for tokens (default: carelink-auth)
	Audience []string // Audience claims validated in tokens (default: carelink-api)

	PrivateKeyFile string   // Optional: PEM signing key; an ephemeral key is generated when unset
	PublicKeyFiles []string // Optional: extra PKIX public keys kept valid across rotations

	AccessTTL  time.Duration // Access token lifetime (default: 1h)
	RefreshTTL time.Duration // Refresh token lifetime (default: 720h)
	BcryptCost int           // Password hashing cost (default: 12)

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)

	RedisAddr     string // Redis host:port (default: localhost:6379)
	RedisPassword string // Optional
	RedisDB       int    // Optional

	RegisterLimit       int64         // Registration attempts per IP per window (default: 5)
	LoginLimit          int64         // Login attempts per IP per window (default: 10)
	RateLimitWindow     time.Duration // Admission counter window (default: 1h)
	RateLimitFailClosed bool          // Reject credential requests when Redis is down (default: false)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	SessionRetention     time.Duration // How long expired/revoked sessions stay queryable (default: 720h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:   getEnvOrDefault("AUTH_ISSUER", "carelink-auth"),
		Audience: splitNonEmpty(getEnvOrDefault("AUTH_AUDIENCE", "carelink-api")),

		PrivateKeyFile: os.Getenv("AUTH_PRIVATE_KEY_FILE"),
		PublicKeyFiles: splitNonEmpty(os.Getenv("AUTH_PUBLIC_KEY_FILES")),

		AccessTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		BcryptCost: getEnvIntOrDefault("AUTH_BCRYPT_COST", cryptox.DefaultHashCost),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		RegisterLimit:       int64(getEnvIntOrDefault("RATE_LIMIT_REGISTER", guard.DefaultRegisterLimit)),
		LoginLimit:          int64(getEnvIntOrDefault("RATE_LIMIT_LOGIN", guard.DefaultLoginLimit)),
		RateLimitWindow:     getEnvDurationOrDefault("RATE_LIMIT_WINDOW", guard.DefaultWindow),
		RateLimitFailClosed: getEnvBoolOrDefault("RATE_LIMIT_FAIL_CLOSED", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		SessionRetention:     getEnvDurationOrDefault("SESSION_RETENTION", 30*24*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// splitNonEmpty splits a comma-separated env value, dropping blanks.
func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
