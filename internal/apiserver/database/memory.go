package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/protocol"
)

// Memory is a process-local Store
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*protocol.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*protocol.Session)}
}

func (m *Memory) Create(_ context.Context, lang protocol.Language) (*protocol.Session, error) {
	s := newSession(uuid.NewString(), lang)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	c := *s
	return &c, nil
}

func (m *Memory) Get(_ context.Context, id string) (*protocol.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cnst.ErrSessionNotFound, id)
	}
	c := *s
	return &c, nil
}

func (m *Memory) GetOrCreate(_ context.Context, id string, lang protocol.Language) (*protocol.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = newSession(id, lang)
		m.sessions[id] = s
	}
	c := *s
	return &c, nil
}

func (m *Memory) UpdateCode(_ context.Context, id, code string, lang *protocol.Language) (*protocol.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cnst.ErrSessionNotFound, id)
	}
	s.Code = code
	if lang != nil {
		s.Language = *lang
	}
	c := *s
	return &c, nil
}

func (m *Memory) SetParticipants(_ context.Context, id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", cnst.ErrSessionNotFound, id)
	}
	if n < 0 {
		n = 0
	}
	s.Participants = n
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func newSession(id string, lang protocol.Language) *protocol.Session {
	if !lang.Valid() {
		lang = protocol.DefaultLanguage
	}
	return &protocol.Session{
		ID:        id,
		Language:  lang,
		CreatedAt: time.Now().UTC(),
	}
}
