// internal/config/config.go
package config

import (
	"os"
	"strconv"
)

// Config holds the service's environment-driven settings. Load it after
// godotenv's autoload has had a chance to populate the environment.
type Config struct {
	ListenAddr string

	// Backing selects where the room table snapshot lives: "memory",
	// "redis", or "postgres".
	Backing string

	RedisAddr string
	RedisDB   int

	DatabaseURL string

	// StorageKey is the fixed key the serialized table is written under.
	StorageKey string

	// SyncChannel is the pub/sub channel carrying rooms-sync messages.
	SyncChannel string

	// EventsQueue is the Redis list the journal appends to; empty disables
	// the journal.
	EventsQueue string
}

// Load reads the configuration from the environment with local-dev defaults.
func Load() Config {
	return Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		Backing:     getEnv("STORE_BACKING", "redis"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		StorageKey:  getEnv("STORAGE_KEY", "pointdeck:rooms"),
		SyncChannel: getEnv("SYNC_CHANNEL", "pointdeck:rooms-sync"),
		EventsQueue: getEnv("EVENTS_QUEUE", "pointdeck_events"),
	}
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
