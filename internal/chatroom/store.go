// Package chatroom implements the chat-room creation port: room records in
// Redis plus a room-created event published for downstream consumers. The
// chat transport itself (message relay, persistence) lives outside this
// service.
package chatroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekani/crew-server/internal/match"
)

const (
	// RoomPrefix is the Redis key prefix for room records.
	RoomPrefix = "room:"

	// RoomTTL is how long a room record lives. The chat service refreshes
	// it while the room is active.
	RoomTTL = 2 * time.Hour
)

// Record is the stored shape of a chat room.
type Record struct {
	RoomID    string           `json:"roomId"`
	Users     []match.RoomUser `json:"users"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Store manages chat-room records in Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a room store backed by Redis.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func roomKey(roomID string) string { return RoomPrefix + roomID }

// Create writes the room record. Idempotent on roomID: a record that
// already exists is left untouched, so coordinator retries are safe.
// Returns true when this call created the record.
func (s *Store) Create(ctx context.Context, room match.Room) (bool, error) {
	rec := Record{RoomID: room.RoomID, Users: room.Users, CreatedAt: room.Timestamp}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("chatroom: marshal room %s: %w", room.RoomID, err)
	}

	created, err := s.rdb.SetNX(ctx, roomKey(room.RoomID), data, RoomTTL).Result()
	if err != nil {
		return false, fmt.Errorf("chatroom: create room %s: %w", room.RoomID, err)
	}
	return created, nil
}

// Get retrieves a room record. Returns nil if not found or expired.
func (s *Store) Get(ctx context.Context, roomID string) (*Record, error) {
	data, err := s.rdb.Get(ctx, roomKey(roomID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chatroom: get room %s: %w", roomID, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("chatroom: decode room %s: %w", roomID, err)
	}
	return &rec, nil
}
