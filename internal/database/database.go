package database

import (
	"fmt"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DB struct {
	*gorm.DB
	log *zap.Logger
}

func Connect(databaseURL string, logLevel string, log *zap.Logger) (*DB, error) {
	var gormLogLevel logger.LogLevel
	switch logLevel {
	case "debug":
		gormLogLevel = logger.Info
	case "warn":
		gormLogLevel = logger.Warn
	case "error":
		gormLogLevel = logger.Error
	default:
		gormLogLevel = logger.Silent
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established")
	return &DB{DB: db, log: log}, nil
}

// Migrate crée les tables du job store et de l'index RAG
func (db *DB) Migrate() error {
	db.log.Info("Running database migrations...")

	if err := db.AutoMigrate(&models.JobRecord{}, &models.QueueItem{}); err != nil {
		return fmt.Errorf("failed to migrate job store tables: %w", err)
	}
	if err := db.AutoMigrate(&models.ChunkRecord{}); err != nil {
		return fmt.Errorf("failed to migrate ChunkRecord: %w", err)
	}

	db.log.Info("Database migrations completed")
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
