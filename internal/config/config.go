package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Scan Orchestration Configuration
	CheckTimeout        time.Duration
	ScanTimeout         time.Duration
	MaxConcurrentChecks int

	// Check Configuration
	TLSSidecarURL   string
	OutboundTimeout time.Duration

	// Registry / Cache Housekeeping
	JanitorSchedule string
	RegistryMaxAge  time.Duration

	// Persistence (optional)
	PersistenceEnabled bool
	MongoURI           string
	MongoDatabase      string
	MongoTimeout       time.Duration

	// Notifications (optional)
	NotifyWebhookURL     string
	NotifyWebhookTimeout time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first when
// present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,

		// Orchestration
		CheckTimeout:        getDurationEnv("CHECK_TIMEOUT_SEC", 30) * time.Second,
		ScanTimeout:         getDurationEnv("SCAN_TIMEOUT_SEC", 120) * time.Second,
		MaxConcurrentChecks: getIntEnv("MAX_CONCURRENT_CHECKS", 0),

		// Checks
		TLSSidecarURL:   getEnv("TLS_SIDECAR_URL", "http://localhost:5000"),
		OutboundTimeout: getDurationEnv("OUTBOUND_TIMEOUT_SEC", 30) * time.Second,

		// Housekeeping
		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "*/5 * * * *"),
		RegistryMaxAge:  getDurationEnv("REGISTRY_MAX_AGE_SEC", 3600) * time.Second,

		// Persistence
		PersistenceEnabled: getBoolEnv("PERSISTENCE_ENABLED", false),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017/talon?authSource=admin"),
		MongoDatabase:      getEnv("MONGO_DATABASE", "talon"),
		MongoTimeout:       getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,

		// Notifications
		NotifyWebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookTimeout: getDurationEnv("NOTIFY_WEBHOOK_TIMEOUT_SEC", 10) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, OPTIONS"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
