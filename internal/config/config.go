package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Server
	Port     string
	LogLevel string

	// Storage
	DBPath    string
	StatePath string

	// Shield
	WarningOffsetMinutes int

	// Backup
	BackupBucket     string
	BackupEndpoint   string
	BackupRegion     string
	BackupAccessKey  string
	BackupSecretKey  string
	BackupPassphrase string
	BackupHour       int
	BackupKeep       int
}

func Load() *Config {
	return &Config{
		Port:     getEnv("COOKIES_PORT", "8080"),
		LogLevel: getEnv("COOKIES_LOG_LEVEL", "info"),

		DBPath:    getEnv("COOKIES_DB_PATH", "cookies.db"),
		StatePath: getEnv("COOKIES_STATE_PATH", "cookies-state.json"),

		WarningOffsetMinutes: getEnvInt("COOKIES_WARNING_OFFSET_MINUTES", 5),

		BackupBucket:     getEnv("COOKIES_BACKUP_BUCKET", ""),
		BackupEndpoint:   getEnv("COOKIES_BACKUP_ENDPOINT", ""),
		BackupRegion:     getEnv("COOKIES_BACKUP_REGION", "auto"),
		BackupAccessKey:  getEnv("COOKIES_BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:  getEnv("COOKIES_BACKUP_SECRET_KEY", ""),
		BackupPassphrase: getEnv("COOKIES_BACKUP_PASSPHRASE", ""),
		BackupHour:       getEnvInt("COOKIES_BACKUP_HOUR", 3),
		BackupKeep:       getEnvInt("COOKIES_BACKUP_KEEP", 14),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
