// Package db contains things related to the SQL datastore
package db

import (
	"bytekeep/auth-api/config"
	"bytekeep/auth-api/internal/model"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens the configured database and provisions the schema. This
// runs exactly once at startup, request handlers never touch the
// schema.
func New(cfg *config.Config) (*gorm.DB, error) {
	var dial gorm.Dialector

	switch cfg.DBDriver {
	case "postgres":
		dial = postgres.Open(cfg.DBDSN)
	default:
		dial = sqlite.Open(SQLiteDSN(cfg.DBDSN))
	}

	db, err := gorm.Open(dial)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %v database, %w", cfg.DBDriver, err)
	}

	err = db.AutoMigrate(model.User{}, model.AuthToken{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}

// SQLiteDSN turns a plain file path into a DSN with WAL and a busy
// timeout, so concurrent writers queue on the write lock instead of
// erroring out. A DSN that already carries parameters is left alone.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}

	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
}
