// Package config loads ChatStore configuration from the environment
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir        string // directory for the file-backed store
	DatabasePath   string // SQLite path; overrides DataDir when set
	LogLevel       string
	LogPretty      bool
	RetentionDays  int
	HighlightLimit int // max bytes of highlighted content, 0 disables truncation
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		DataDir:        getEnv("CHATSTORE_DIR", "chatstore-data"),
		DatabasePath:   getEnv("CHATSTORE_DB", ""),
		LogLevel:       getEnv("CHATSTORE_LOG_LEVEL", "info"),
		LogPretty:      getEnv("CHATSTORE_LOG_PRETTY", "true") == "true",
		RetentionDays:  getEnvAsInt("CHATSTORE_RETENTION_DAYS", 90),
		HighlightLimit: getEnvAsInt("CHATSTORE_HIGHLIGHT_LIMIT", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
