package database

import (
	"github.com/devnovikov/algoroom/internal/common/config"

	"gorm.io/driver/mysql"
)

// NewMySQL creates a MySQL-backed store
func NewMySQL(cfg *config.DatabaseConfig) (*GormStore, error) {
	return newGormStore(mysql.Open(cfg.GetDSN()), nil)
}
