package pkg

import (
	"fmt"

	"github.com/SAP-F-2025/assessment-runner/internal/config"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase opens the audit journal database and migrates its table.
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.IsProduction() {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.SessionAuditLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit journal: %w", err)
	}

	return db, nil
}
