package config

import "os"

type Config struct {
	DatabaseURL       string
	Port              string
	StorageDriver     string // database, badger or memory
	BadgerPath        string
	FCMServiceAccount string
	FCMTopic          string
	LogLevel          string
}

func Load() *Config {
	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", "mandala.db"),
		Port:              getEnv("PORT", "8080"),
		StorageDriver:     getEnv("STORAGE_DRIVER", "database"),
		BadgerPath:        getEnv("BADGER_PATH", "data/tree"),
		FCMServiceAccount: getEnv("FCM_SERVICE_ACCOUNT", ""),
		FCMTopic:          getEnv("FCM_TOPIC", "celebrations"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
