// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultCFPBBaseURL is the public consumer complaint search endpoint.
const DefaultCFPBBaseURL = "https://www.consumerfinance.gov/data-research/consumer-complaints/search/api/v1/"

// Config holds all configuration values for the application.
type Config struct {
	// CFPB complaint search
	CFPBBaseURL        string
	CFPBTimeout        time.Duration
	CFPBRateLimitRPS   float64
	CFPBLookbackMonths int
	CFPBPageSize       int
	MockMonths         int

	// Analytics
	RecommendationsFile string

	// AWS
	AWSRegion string
	S3Bucket  string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// SnapshotRetention caps stored snapshots; zero keeps all.
	SnapshotRetention int

	// SES
	SESSenderEmail   string
	DigestRecipients []string

	// Application
	Port           string
	AllowedOrigins []string
	Stage          string
	LogLevel       string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// CFPB
		CFPBBaseURL:        getEnv("CFPB_BASE_URL", DefaultCFPBBaseURL),
		CFPBTimeout:        getEnvDuration("CFPB_TIMEOUT", 15*time.Second),
		CFPBRateLimitRPS:   getEnvFloat("CFPB_RATE_LIMIT_RPS", 5),
		CFPBLookbackMonths: getEnvInt("CFPB_LOOKBACK_MONTHS", 12),
		CFPBPageSize:       getEnvInt("CFPB_PAGE_SIZE", 25),
		MockMonths:         getEnvInt("MOCK_MONTHS", 12),

		RecommendationsFile: getEnv("RECOMMENDATIONS_FILE", ""),

		// AWS
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:  getEnv("S3_BUCKET", ""),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "investor_portal"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),

		SnapshotRetention: getEnvInt("SNAPSHOT_RETENTION", 500),

		// SES
		SESSenderEmail:   getEnv("SES_SENDER_EMAIL", ""),
		DigestRecipients: getEnvSlice("DIGEST_RECIPIENTS", nil),

		// Application
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		Stage:          getEnv("STAGE", "dev"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	sslMode := "require"
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable"
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// DatabaseConfigured reports whether enough settings exist to attempt a connection.
func (c *Config) DatabaseConfigured() bool {
	return os.Getenv("DATABASE_URL") != "" || c.DBPassword != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
