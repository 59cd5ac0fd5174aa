// Package store persists chat messages in an embedded SQLite database.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meshline/meshline/internal/domain"
)

// messageRecord is the GORM row shape. Seq is the persistence order;
// broadcast order follows it.
type messageRecord struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	Room      string `gorm:"index"`
	Sender    string
	Text      string
	Timestamp time.Time
}

func (messageRecord) TableName() string { return "messages" }

// MessageStore implements the append/recent contract on SQLite.
// Timestamps are assigned at append time under the store's write lock,
// clamped so they never decrease.
type MessageStore struct {
	db *gorm.DB

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for tests.
func Open(path string) (*MessageStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate message store: %w", err)
	}
	return &MessageStore{db: db, now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (s *MessageStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append assigns the server timestamp and sequence, then writes the row.
// The message is mutated in place so the caller broadcasts exactly what
// was persisted.
func (s *MessageStore) Append(ctx context.Context, m *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	if ts.Before(s.last) {
		ts = s.last
	}

	rec := messageRecord{
		Room:      string(m.Room),
		Sender:    string(m.Sender),
		Text:      m.Text,
		Timestamp: ts,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	s.last = ts
	m.Seq = rec.Seq
	m.Timestamp = ts
	return nil
}

// Recent returns up to limit messages of a room, oldest first.
func (s *MessageStore) Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	var recs []messageRecord
	err := s.db.WithContext(ctx).
		Where("room = ?", string(room)).
		Order("seq DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	out := make([]domain.ChatMessage, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = domain.ChatMessage{
			Seq:       rec.Seq,
			Room:      domain.RoomID(rec.Room),
			Sender:    domain.ConnID(rec.Sender),
			Text:      rec.Text,
			Timestamp: rec.Timestamp,
		}
	}
	return out, nil
}
