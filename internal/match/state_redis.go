package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekani/crew-server/internal/mbti"
)

const (
	// stateKeyPrefix is the Redis key prefix for per-user match state.
	stateKeyPrefix = "match:state:"

	// queuedStateTTL bounds how long an orphaned QUEUED record can live.
	// MATCHED records carry their own, much shorter TTL.
	queuedStateTTL = 1 * time.Hour
)

// RedisState is the Redis-backed State adapter. Records are small JSON
// objects with the state field driving interpretation; TTL expiry makes a
// record absent.
type RedisState struct {
	rdb *redis.Client
}

// NewRedisState creates a state adapter on the given Redis client.
func NewRedisState(rdb *redis.Client) *RedisState {
	return &RedisState{rdb: rdb}
}

func stateKey(userID string) string { return stateKeyPrefix + userID }

// Get returns the user's state record, or nil when absent or expired.
// Malformed records — including a MATCHED record without a room id — are
// logged and treated as absent rather than crashing the request.
func (s *RedisState) Get(ctx context.Context, userID string) (*UserState, error) {
	data, err := s.rdb.Get(ctx, stateKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match: get state %s: %w", userID, err)
	}

	var st UserState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		log.Printf("[match] undecodable state for %s, treating as absent: %v", userID, err)
		return nil, nil
	}
	if st.State == StateMatched && st.RoomID == "" {
		log.Printf("[match] MATCHED state without room id for %s, treating as absent", userID)
		return nil, nil
	}
	return &st, nil
}

// SetQueued records that the user is waiting in the given partition.
func (s *RedisState) SetQueued(ctx context.Context, userID string, m mbti.MBTI) error {
	return s.set(ctx, userID, UserState{State: StateQueued, MBTI: m.String()}, queuedStateTTL)
}

// SetMatched records the user's most recent pairing. The TTL gives the user
// time to connect to the room; after expiry the user is matchable again.
func (s *RedisState) SetMatched(ctx context.Context, userID string, m mbti.MBTI, roomID, partnerID string, ttl time.Duration) error {
	return s.set(ctx, userID, UserState{
		State:     StateMatched,
		MBTI:      m.String(),
		RoomID:    roomID,
		PartnerID: partnerID,
	}, ttl)
}

func (s *RedisState) set(ctx context.Context, userID string, st UserState, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("match: marshal state %s: %w", userID, err)
	}
	if err := s.rdb.Set(ctx, stateKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("match: set state %s: %w", userID, err)
	}
	return nil
}

// Clear removes the user's state record.
func (s *RedisState) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("match: clear state %s: %w", userID, err)
	}
	return nil
}

// IsAvailableForMatch is true iff the user has no unexpired MATCHED record.
// QUEUED users are available: winning a pairing simply supersedes their
// queue entry.
func (s *RedisState) IsAvailableForMatch(ctx context.Context, userID string) (bool, error) {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return st == nil || st.State != StateMatched, nil
}
