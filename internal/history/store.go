// Package history persists channel events (joins, parts, topic
// changes, messages) to SQLite. Writes go through a buffered worker so
// the server's event loop never blocks on the database.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Event is one recorded channel event.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Channel   string    `gorm:"index" json:"channel"`
	Nick      string    `json:"nick"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
}

// Store is a SQLite-backed event log.
type Store struct {
	db    *gorm.DB
	queue chan Event
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// queueSize bounds the write backlog; events beyond it are dropped
// rather than applying backpressure to the caller.
const queueSize = 1024

// Open opens (creating if needed) the event log at path and starts the
// write worker.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	s := &Store{
		db:    db,
		queue: make(chan Event, queueSize),
	}

	s.wg.Add(1)
	go s.worker()

	return s, nil
}

// Record enqueues one event. It never blocks; when the backlog is full
// the event is dropped.
func (s *Store) Record(channel, nick, kind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- Event{Channel: channel, Nick: nick, Kind: kind, Text: text}:
	default:
	}
}

func (s *Store) worker() {
	defer s.wg.Done()
	for ev := range s.queue {
		s.db.Create(&ev)
	}
}

// Recent returns up to limit events, newest first, optionally filtered
// by channel.
func (s *Store) Recent(channel string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	q := s.db.Order("id desc").Limit(limit)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}

	var events []Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return events, nil
}

// Close drains the backlog and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
	s.wg.Wait()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
