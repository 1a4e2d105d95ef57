package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	StorageEngine  string
	SQLitePath     string
	DatabaseURL    string
	DBMaxOpenConns int

	// Redis
	RedisURL string

	// JWT
	JWTSecret    string
	JWTAccessTTL time.Duration

	// CORS
	AllowedOrigins []string

	// Ledger
	OwnerID             int64
	StartingCredits     int64
	ReferralBonus       int64
	RedeemMaxFailures   int
	RedeemFailureWindow time.Duration

	// Telegram
	TelegramBotToken string

	// Snapshots (S3 compatible)
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	SnapshotDir       string

	// Worker
	SweepInterval    time.Duration
	SnapshotInterval time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	// Load .env file in development
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Storage
		StorageEngine:  strings.ToLower(getEnv("STORAGE_ENGINE", "sqlite")),
		SQLitePath:     getEnv("SQLITE_PATH", "data/ledger.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBMaxOpenConns: parseInt(getEnv("DB_MAX_OPEN_CONNS", "25"), 25),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// JWT
		JWTSecret:    getEnv("JWT_SECRET", "super-secret-key-change-me"),
		JWTAccessTTL: parseDuration(getEnv("JWT_ACCESS_TTL", "720h"), 720*time.Hour),

		// CORS
		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		// Ledger
		OwnerID:             parseInt64(getEnv("OWNER_ID", "0"), 0),
		StartingCredits:     parseInt64(getEnv("STARTING_CREDITS", "5"), 5),
		ReferralBonus:       parseInt64(getEnv("REFERRAL_BONUS", "3"), 3),
		RedeemMaxFailures:   parseInt(getEnv("REDEEM_MAX_FAILURES", "5"), 5),
		RedeemFailureWindow: parseDuration(getEnv("REDEEM_FAILURE_WINDOW", "15m"), 15*time.Minute),

		// Telegram
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		// Snapshots
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		SnapshotDir:       getEnv("SNAPSHOT_DIR", "data/snapshots"),

		// Worker
		SweepInterval:    parseDuration(getEnv("SWEEP_INTERVAL", "5m"), 5*time.Minute),
		SnapshotInterval: parseDuration(getEnv("SNAPSHOT_INTERVAL", "24h"), 24*time.Hour),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

// Validate rejects combinations the process cannot start with.
func (c *Config) Validate() error {
	switch c.StorageEngine {
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite engine")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres engine")
		}
	default:
		return fmt.Errorf("unknown STORAGE_ENGINE %q (want sqlite or postgres)", c.StorageEngine)
	}
	if c.IsProduction() && c.JWTSecret == "super-secret-key-change-me" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

// UseS3 reports whether snapshots go to a bucket instead of SnapshotDir.
func (c *Config) UseS3() bool {
	return c.S3Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseInt(s string, defaultValue int) int {
	value, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseInt64(s string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseStringSlice(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
