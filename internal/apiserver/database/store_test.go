package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/protocol"
)

func newTestSQLite(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": newTestSQLite(t),
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := s.Create(ctx, protocol.LanguagePython)
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, "", created.Code)
			assert.Equal(t, protocol.LanguagePython, created.Language)
			assert.Equal(t, 0, created.Participants)
			assert.False(t, created.CreatedAt.IsZero())

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, protocol.LanguagePython, got.Language)

			_, err = s.Get(ctx, "missing")
			assert.True(t, errors.Is(err, cnst.ErrSessionNotFound))
		})
	}
}

func TestStore_CreateFallsBackToDefaultLanguage(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			created, err := s.Create(context.Background(), "")
			require.NoError(t, err)
			assert.Equal(t, protocol.DefaultLanguage, created.Language)
		})
	}
}

func TestStore_GetOrCreate(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := s.GetOrCreate(ctx, "room-1", protocol.LanguageJavaScript)
			require.NoError(t, err)
			assert.Equal(t, "room-1", first.ID)

			_, err = s.UpdateCode(ctx, "room-1", "x=1", nil)
			require.NoError(t, err)

			again, err := s.GetOrCreate(ctx, "room-1", protocol.LanguagePython)
			require.NoError(t, err)
			assert.Equal(t, "x=1", again.Code)
			assert.Equal(t, protocol.LanguageJavaScript, again.Language)
		})
	}
}

func TestStore_GetOrCreateConcurrent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.GetOrCreate(context.Background(), "shared", protocol.LanguagePython)
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStore_UpdateCode(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.Create(ctx, protocol.LanguageJavaScript)
			require.NoError(t, err)

			updated, err := s.UpdateCode(ctx, created.ID, "console.log(1)", nil)
			require.NoError(t, err)
			assert.Equal(t, "console.log(1)", updated.Code)
			assert.Equal(t, protocol.LanguageJavaScript, updated.Language)

			py := protocol.LanguagePython
			updated, err = s.UpdateCode(ctx, created.ID, "print(1)", &py)
			require.NoError(t, err)
			assert.Equal(t, protocol.LanguagePython, updated.Language)

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "print(1)", got.Code)
			assert.Equal(t, protocol.LanguagePython, got.Language)

			_, err = s.UpdateCode(ctx, "missing", "x", nil)
			assert.True(t, errors.Is(err, cnst.ErrSessionNotFound))
		})
	}
}

func TestStore_SetParticipants(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.Create(ctx, protocol.LanguageJavaScript)
			require.NoError(t, err)

			require.NoError(t, s.SetParticipants(ctx, created.ID, 3))
			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, got.Participants)

			require.NoError(t, s.SetParticipants(ctx, created.ID, -2))
			got, err = s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Participants)

			err = s.SetParticipants(ctx, "missing", 1)
			assert.True(t, errors.Is(err, cnst.ErrSessionNotFound))
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	created, err := m.Create(context.Background(), protocol.LanguageJavaScript)
	require.NoError(t, err)
	created.Code = "mutated"

	got, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Code)
}

func TestGormStore_JoinsContextTransaction(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	created, err := s.Create(ctx, protocol.LanguageJavaScript)
	require.NoError(t, err)

	tx := s.DB().Begin()
	txCtx := ContextWithTransaction(ctx, tx)
	assert.NotNil(t, TransactionFromContext(txCtx))

	_, err = s.UpdateCode(txCtx, created.ID, "rolled back", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback().Error)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Code)
}
