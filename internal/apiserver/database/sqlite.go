package database

import (
	"fmt"

	"github.com/devnovikov/algoroom/internal/common/config"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLite opens a pure-Go sqlite database. ":memory:" (or an empty name)
// gives a private in-process database.
func NewSQLite(cfg *config.DatabaseConfig) (*GormStore, error) {
	dsn := cfg.GetDSN()
	if dsn == "" {
		dsn = ":memory:"
	}

	store, err := newGormStore(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// every pooled connection to :memory: would see its own empty database,
	// and sqlite serializes writers anyway
	sqlDB.SetMaxOpenConns(1)

	return store, nil
}
