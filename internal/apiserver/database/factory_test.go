package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devnovikov/algoroom/internal/common/config"
)

func TestNewStore_Factory(t *testing.T) {
	_, err := NewStore(&config.DatabaseConfig{Type: "unknown"})
	assert.Error(t, err)

	s, err := NewStore(&config.DatabaseConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = NewStore(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, s)
	_ = s.Close()

	// nothing listens on port 1, so the initial ping fails fast
	_, err = NewStore(&config.DatabaseConfig{Type: "mysql", Host: "127.0.0.1", Port: 1, User: "u", Password: "p", DBName: "d"})
	assert.Error(t, err)
}
