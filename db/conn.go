// Package db opens the catalog database
package db

import (
	"bitwise74/course-archive/config"
	"bitwise74/course-archive/internal/model"
	"errors"
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens the database configured in database.driver and migrates the
// catalog tables
func New(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if inDocker() {
			if _, err := os.Stat(cfg.DSN); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to %s", cfg.DSN)
			}
		}

		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	return Open(dialector)
}

// Open connects through an already built dialector and runs AutoMigrate
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database, %w", err)
	}

	err = db.AutoMigrate(model.Resource{}, model.Interaction{}, model.Course{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}

func inDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
