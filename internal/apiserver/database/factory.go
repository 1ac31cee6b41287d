package database

import (
	"fmt"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
)

// NewStore creates a session store based on configuration
func NewStore(cfg *config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "", cnst.StoreTypeMemory:
		return NewMemory(), nil
	case cnst.StoreTypeSQLite:
		return NewSQLite(cfg)
	case cnst.StoreTypePostgres:
		return NewPostgres(cfg)
	case cnst.StoreTypeMySQL:
		return NewMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
