// Package database opens the process-wide gorm connection pool.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axellelanca/shortlinks/internal/config"
	"github.com/axellelanca/shortlinks/internal/models"
)

const sqliteBusyTimeout = 5 * time.Second

// Open connects to the configured Store and sizes its pool. The returned
// handle is meant to live for the whole process; release it with Close.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.Name))
	case "postgres":
		dialector = postgres.Open(cfg.Name)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	if cfg.Driver == "postgres" {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		// One connection: writers are serialised and ":memory:" stays a single database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)

		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout.Milliseconds()),
		}
		for _, p := range pragmas {
			if err := db.Exec(p).Error; err != nil {
				return nil, fmt.Errorf("failed to apply %q: %w", p, err)
			}
		}
	}

	if log != nil {
		log.Info("database connected", zap.String("driver", cfg.Driver))
	}
	return db, nil
}

// sqliteDSN adds the connection pragmas to file databases.
func sqliteDSN(name string) string {
	if name == "" || name == ":memory:" || strings.Contains(name, "?") {
		return name
	}
	return name + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Migrate creates or updates the links and visits tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Link{}, &models.Visit{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
