// Package database manages the SQLite connection used for the job audit
// log. Analytics data itself is never stored here; every historical job is
// recomputed from the upstream APIs.
package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"caudal/internal/audit"
	"caudal/internal/config"
)

// DBManager owns the gorm connection and its migrations.
type DBManager struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB
}

// NewDBManager creates a new database manager.
func NewDBManager(cfg *config.Config, logger *logrus.Logger) *DBManager {
	return &DBManager{cfg: cfg, logger: logger}
}

// Init opens the database connection with WAL enabled.
func (dm *DBManager) Init() error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", dm.cfg.DatabaseName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database at %s: %w", dm.cfg.DatabaseName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(dm.maxOpenConns())
	sqlDB.SetMaxIdleConns(1)

	dm.db = db
	return nil
}

// MigrateDatabase runs the schema migrations.
func (dm *DBManager) MigrateDatabase() error {
	if dm.db == nil {
		return gorm.ErrInvalidDB
	}

	err := dm.db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&audit.JobAudit{},
		)
	})
	if err != nil {
		dm.logger.WithError(err).Error("Failed to auto-migrate database")
		return err
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}

// GetConnection returns the live gorm connection, or nil before Init.
func (dm *DBManager) GetConnection() *gorm.DB {
	return dm.db
}

// Close releases the underlying connection pool.
func (dm *DBManager) Close() error {
	if dm.db == nil {
		return nil
	}
	sqlDB, err := dm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// A single writer keeps SQLite happy in tests; a small pool is enough for
// the audit log elsewhere.
func (dm *DBManager) maxOpenConns() int {
	if dm.cfg.IsTest() {
		return 1
	}
	return 5
}
