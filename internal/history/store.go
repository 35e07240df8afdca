// Package history provides PostgreSQL-backed storage for completed match
// records. One row is written per chat room, capturing both participants
// and their MBTI types for product analytics.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store manages match records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Entry is a single completed match to be persisted.
type Entry struct {
	RoomID    string
	UserA     string
	MBTIA     string
	UserB     string
	MBTIB     string
	CreatedAt time.Time
}

// NewStore creates a history store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a match record. Inserts are idempotent on room_id: a
// redelivered room event hits the primary-key conflict and is ignored.
func (s *Store) Create(ctx context.Context, e *Entry) error {
	const query = `
		INSERT INTO match_rooms (room_id, user_a, mbti_a, user_b, mbti_b, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		e.RoomID, e.UserA, e.MBTIA, e.UserB, e.MBTIB, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert %s: %w", e.RoomID, err)
	}
	return nil
}

// CountSince returns how many matches were recorded within the window.
func (s *Store) CountSince(ctx context.Context, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM match_rooms
		WHERE created_at >= NOW() - $1::interval`

	var count int
	if err := s.db.QueryRowContext(ctx, query, window.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("history: count since: %w", err)
	}
	return count, nil
}

// CountByPair returns how many times the two MBTI types have been paired,
// regardless of which side requested.
func (s *Store) CountByPair(ctx context.Context, mbtiA, mbtiB string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM match_rooms
		WHERE (mbti_a = $1 AND mbti_b = $2)
		   OR (mbti_a = $2 AND mbti_b = $1)`

	var count int
	if err := s.db.QueryRowContext(ctx, query, mbtiA, mbtiB).Scan(&count); err != nil {
		return 0, fmt.Errorf("history: count by pair: %w", err)
	}
	return count, nil
}
