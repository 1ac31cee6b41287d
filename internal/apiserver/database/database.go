package database

import (
	"context"

	"github.com/devnovikov/algoroom/internal/protocol"
)

// Store defines the session record operations the server relies on.
// Every lookup of an unknown id returns an error wrapping
// cnst.ErrSessionNotFound.
type Store interface {
	// Create stores a fresh session with a generated id and empty code.
	Create(ctx context.Context, lang protocol.Language) (*protocol.Session, error)

	// Get returns the session with the given id.
	Get(ctx context.Context, id string) (*protocol.Session, error)

	// GetOrCreate returns the session with the given id, creating it with
	// lang and empty code when it does not exist yet.
	GetOrCreate(ctx context.Context, id string, lang protocol.Language) (*protocol.Session, error)

	// UpdateCode replaces the whole document. A nil lang keeps the current language.
	UpdateCode(ctx context.Context, id, code string, lang *protocol.Language) (*protocol.Session, error)

	// SetParticipants records the live participant count.
	SetParticipants(ctx context.Context, id string, n int) error

	// Close releases the underlying connection.
	Close() error
}
