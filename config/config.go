// Package config provides relay configuration management.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all relay configuration.
type Config struct {
	// Server configuration
	ServerPort      string
	APIToken        string
	StreamHeartbeat time.Duration
	ReplayLimit     int64

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string

	// Event log configuration
	EventLogStream      string
	EventLogMaxLen      int64
	EventLogRetention   time.Duration
	MaintenanceInterval time.Duration
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		APIToken:            os.Getenv("RELAY_API_TOKEN"),
		StreamHeartbeat:     getEnvDuration("STREAM_HEARTBEAT", 15*time.Second),
		ReplayLimit:         int64(getEnvInt("STREAM_REPLAY_LIMIT", 1000)),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisUsername:       getEnv("REDIS_USERNAME", ""),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:     getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure:    getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		EventsChannel:       getEnv("EVENTS_CHANNEL", "game-console-events"),
		EventLogStream:      getEnv("EVENT_LOG_STREAM", "game-console:deployment-log"),
		EventLogMaxLen:      int64(getEnvInt("EVENT_LOG_MAXLEN", 10000)),
		EventLogRetention:   getEnvDuration("EVENT_LOG_RETENTION", 24*time.Hour),
		MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", 10*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s: %s, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			log.Printf("Invalid bool for %s: %s, using default %t", key, value, defaultValue)
		}
	}
	return defaultValue
}
