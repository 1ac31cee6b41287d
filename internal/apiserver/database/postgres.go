package database

import (
	"github.com/devnovikov/algoroom/internal/common/config"

	"gorm.io/driver/postgres"
)

// NewPostgres creates a PostgreSQL-backed store
func NewPostgres(cfg *config.DatabaseConfig) (*GormStore, error) {
	return newGormStore(postgres.Open(cfg.GetDSN()), nil)
}
