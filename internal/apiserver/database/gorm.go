package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/protocol"
)

// GormStore implements Store on any gorm dialect
type GormStore struct {
	db *gorm.DB
}

func newGormStore(dialector gorm.Dialector, cfg *gorm.Config) (*GormStore, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

// DB exposes the gorm handle
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Create(ctx context.Context, lang protocol.Language) (*protocol.Session, error) {
	rec := newRecord(uuid.NewString(), lang)
	if err := getDBFromContext(ctx, s.db).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec.toSession(), nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*protocol.Session, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.toSession(), nil
}

func (s *GormStore) GetOrCreate(ctx context.Context, id string, lang protocol.Language) (*protocol.Session, error) {
	rec := newRecord(id, lang)
	// concurrent materializations of the same id must both succeed
	err := getDBFromContext(ctx, s.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *GormStore) UpdateCode(ctx context.Context, id, code string, lang *protocol.Language) (*protocol.Session, error) {
	var out *protocol.Session
	err := inTransaction(ctx, s.db, func(ctx context.Context) error {
		rec, err := s.find(ctx, id)
		if err != nil {
			return err
		}
		rec.Code = code
		if lang != nil {
			rec.Language = string(*lang)
		}
		rec.UpdatedAt = time.Now().UTC()
		if err := getDBFromContext(ctx, s.db).
			Model(&SessionRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{"code": rec.Code, "language": rec.Language, "updated_at": rec.UpdatedAt}).Error; err != nil {
			return err
		}
		out = rec.toSession()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) SetParticipants(ctx context.Context, id string, n int) error {
	if n < 0 {
		n = 0
	}
	res := getDBFromContext(ctx, s.db).
		Model(&SessionRecord{}).
		Where("id = ?", id).
		Update("participants", n)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", cnst.ErrSessionNotFound, id)
	}
	return nil
}

func (s *GormStore) find(ctx context.Context, id string) (*SessionRecord, error) {
	var rec SessionRecord
	err := getDBFromContext(ctx, s.db).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", cnst.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
