package app

import (
	"os"
	"strconv"
	"time"

	"github.com/rentora/rentora/pkg/jwtx"
)

type Config struct {
	Issuer       string // issuer claim for access tokens and TOTP label
	DatabaseFile string // path to SQLite database file (default: ./rentora.db)

	SigningSeed   string // optional: base64url Ed25519 seed; empty generates an ephemeral key
	EncryptionKey string // optional: hex-encoded 32-byte key for the TOTP seed cipher
	AppSecret     string // fallback material for deriving the cipher key when EncryptionKey is unset

	AccessTTL         time.Duration // access token lifetime (default: 15m)
	RefreshTTL        time.Duration // refresh token lifetime (default: 7 days)
	PendingSessionTTL time.Duration // MFA gate window (default: 5m)
	ChallengeTTL      time.Duration // biometric challenge lifetime (default: 5m)
	ResetTokenTTL     time.Duration // password reset token lifetime (default: 1h)

	SMTPHost     string // empty means log-only mail
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	BaseURL      string // public base URL embedded in email links

	Env                  string        // dev, staging, prod (default: dev)
	LogLevel             string        // debug, info, warn, error (default: info)
	LogFormat            string        // json, text (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // expired-row sweep interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:       getEnvOrDefault("AUTH_ISSUER", "rentora"),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "rentora.db"),

		SigningSeed:   os.Getenv("AUTH_SIGNING_SEED"),
		EncryptionKey: os.Getenv("AUTH_ENCRYPTION_KEY"),
		AppSecret:     os.Getenv("AUTH_APP_SECRET"),

		AccessTTL:         getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:        getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		PendingSessionTTL: getEnvDurationOrDefault("AUTH_PENDING_SESSION_TTL", 5*time.Minute),
		ChallengeTTL:      getEnvDurationOrDefault("AUTH_CHALLENGE_TTL", 5*time.Minute),
		ResetTokenTTL:     getEnvDurationOrDefault("AUTH_RESET_TOKEN_TTL", 1*time.Hour),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 465),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "no-reply@rentora.app"),
		BaseURL:      getEnvOrDefault("BASE_URL", "http://localhost:8080"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
