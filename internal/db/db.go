package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the document store and applies migrations. The returned
// handle is owned by the composition root and injected into every
// repository; no package-level connection state exists.
func Open(dsn string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(gormDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return gormDB, nil
}
