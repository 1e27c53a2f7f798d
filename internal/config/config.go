package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabaseURL    string
	DatabasePath   string
	MigrationsPath string

	JWTSecret     string
	TokenDuration time.Duration

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	InvitationExpiryDays  int
	MaxPendingInvitations int

	Debug bool
}

// Load reads configuration from the environment (and a .env file if present)
// with sensible defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("PORT", "8080"),
		DatabaseType:   getEnv("DB_TYPE", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabasePath:   getEnv("DB_PATH", "./kidsactivity.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),

		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenDuration: getEnvDuration("TOKEN_DURATION", 24*time.Hour),

		AWSRegion:    getEnv("AWS_REGION", "us-west-2"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Kids Activity Tracker"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),

		InvitationExpiryDays:  getEnvInt("INVITATION_EXPIRY_DAYS", 7),
		MaxPendingInvitations: getEnvInt("MAX_PENDING_INVITATIONS", 50),

		Debug: getEnv("DEBUG", "") == "true",
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
