package database

import (
	"time"

	"github.com/devnovikov/algoroom/internal/protocol"
)

// SessionRecord is the persisted form of a session
type SessionRecord struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	Code         string    `gorm:"type:text;not null"`
	Language     string    `gorm:"type:varchar(32);not null;default:'javascript'"`
	Participants int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (SessionRecord) TableName() string {
	return "sessions"
}

func (r *SessionRecord) toSession() *protocol.Session {
	return &protocol.Session{
		ID:           r.ID,
		Code:         r.Code,
		Language:     protocol.Language(r.Language),
		CreatedAt:    r.CreatedAt.UTC(),
		Participants: r.Participants,
	}
}

func newRecord(id string, lang protocol.Language) *SessionRecord {
	if !lang.Valid() {
		lang = protocol.DefaultLanguage
	}
	now := time.Now().UTC()
	return &SessionRecord{
		ID:        id,
		Language:  string(lang),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
