package database

import (
	"strings"

	"github.com/arnold/mandala-api/internal/config"
	"github.com/arnold/mandala-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	// Use PostgreSQL if URL starts with postgres, otherwise SQLite
	if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
		dialector = postgres.Open(cfg.DatabaseURL)
	} else {
		dialector = sqlite.Open(cfg.DatabaseURL)
	}

	level := logger.Warn
	if cfg.LogLevel == "debug" {
		level = logger.Info
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.TreeEntry{},
		&models.PlannedYearlyMetrics{},
		&models.ActualYearlyMetrics{},
		&models.Celebration{},
	)
}
