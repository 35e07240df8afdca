package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ekani/crew-server/internal/mbti"
)

// Redis key patterns for the partitioned waiting queue. Each MBTI partition
// is a List (arrival order) plus a Set (valid membership). The Set is the
// authoritative oracle: Cancel removes only the Set entry, and DequeueHead
// discards List entries whose user is no longer in the Set.
const (
	queueKeyPrefix = "match:queue:"
)

// RedisQueue is the Redis-backed Queue adapter.
type RedisQueue struct {
	rdb           *redis.Client
	enqueueScript *redis.Script
}

// NewRedisQueue creates a queue adapter on the given Redis client.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{
		rdb:           rdb,
		enqueueScript: redis.NewScript(enqueueLua),
	}
}

func listKey(m mbti.MBTI) string { return queueKeyPrefix + m.String() + ":list" }
func setKey(m mbti.MBTI) string  { return queueKeyPrefix + m.String() + ":set" }

// enqueueLua registers a ticket atomically: the SADD doubles as the
// duplicate check, so two concurrent enqueues of the same user yield
// exactly one success.
const enqueueLua = `
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
    return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
return 1
`

// Enqueue adds the ticket to the partition's set and sequence in one atomic
// step. Returns ErrAlreadyQueued if the user already holds a valid entry.
func (q *RedisQueue) Enqueue(ctx context.Context, t Ticket) error {
	entry, err := t.Encode()
	if err != nil {
		return err
	}

	added, err := q.enqueueScript.Run(ctx, q.rdb,
		[]string{setKey(t.MBTI), listKey(t.MBTI)},
		t.UserID, entry,
	).Int()
	if err != nil {
		return fmt.Errorf("match: enqueue %s: %w", t.UserID, err)
	}
	if added == 0 {
		return ErrAlreadyQueued
	}
	return nil
}

// DequeueHead pops tickets off the sequence until one is backed by a Set
// membership. Entries without membership are ghosts left behind by Cancel
// and are discarded here; undecodable entries are treated the same way.
func (q *RedisQueue) DequeueHead(ctx context.Context, m mbti.MBTI) (*Ticket, error) {
	for {
		data, err := q.rdb.LPop(ctx, listKey(m)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("match: dequeue %s: %w", m, err)
		}

		ticket, err := DecodeTicket([]byte(data))
		if err != nil {
			log.Printf("[match] dropping undecodable queue entry in %s: %v", m, err)
			continue
		}

		removed, err := q.rdb.SRem(ctx, setKey(m), ticket.UserID).Result()
		if err != nil {
			return nil, fmt.Errorf("match: dequeue %s: %w", m, err)
		}
		if removed == 0 {
			// Ghost ticket: the user cancelled after this entry was
			// appended. Skip and keep popping.
			continue
		}
		return &ticket, nil
	}
}

// Cancel removes the user from the partition's set only. The sequence entry
// stays behind as a ghost and is collected by a later DequeueHead.
func (q *RedisQueue) Cancel(ctx context.Context, userID string, m mbti.MBTI) (bool, error) {
	removed, err := q.rdb.SRem(ctx, setKey(m), userID).Result()
	if err != nil {
		return false, fmt.Errorf("match: cancel %s: %w", userID, err)
	}
	return removed > 0, nil
}

// Size returns the valid-entry count: the Set cardinality, never the List
// length (ghosts are invisible).
func (q *RedisQueue) Size(ctx context.Context, m mbti.MBTI) (int, error) {
	n, err := q.rdb.SCard(ctx, setKey(m)).Result()
	if err != nil {
		return 0, fmt.Errorf("match: size %s: %w", m, err)
	}
	return int(n), nil
}

// SortedTargetsBySize reads every target partition's size in one pipelined
// round-trip and returns them descending by size. Ordering within equal
// sizes is unspecified.
func (q *RedisQueue) SortedTargetsBySize(ctx context.Context, targets []mbti.MBTI) ([]QueueSize, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	pipe := q.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(targets))
	for i, m := range targets {
		cmds[i] = pipe.SCard(ctx, setKey(m))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("match: sorted targets: %w", err)
	}

	sizes := make([]QueueSize, len(targets))
	for i, m := range targets {
		sizes[i] = QueueSize{MBTI: m, Size: int(cmds[i].Val())}
	}

	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Size > sizes[j].Size })
	return sizes, nil
}

// IsUserInQueue checks Set membership.
func (q *RedisQueue) IsUserInQueue(ctx context.Context, userID string, m mbti.MBTI) (bool, error) {
	ok, err := q.rdb.SIsMember(ctx, setKey(m), userID).Result()
	if err != nil {
		return false, fmt.Errorf("match: membership %s: %w", userID, err)
	}
	return ok, nil
}
