package match

import (
	"context"
	"errors"
	"time"

	"github.com/ekani/crew-server/internal/mbti"
)

// ErrAlreadyQueued is returned by Queue.Enqueue when the user already holds
// a valid entry in that MBTI partition.
var ErrAlreadyQueued = errors.New("match: user already in queue")

// QueueSize pairs an MBTI partition with its current valid-entry count.
type QueueSize struct {
	MBTI mbti.MBTI
	Size int
}

// Queue is the 16-way partitioned waiting queue. Cancelled entries are
// removed lazily: Cancel drops only the membership record, and DequeueHead
// discards the dangling ("ghost") sequence entries it encounters.
type Queue interface {
	// Enqueue atomically registers the ticket, failing with
	// ErrAlreadyQueued if the user already has a valid entry.
	Enqueue(ctx context.Context, t Ticket) error

	// DequeueHead pops the oldest valid ticket from the partition, or
	// returns (nil, nil) when the partition has none.
	DequeueHead(ctx context.Context, m mbti.MBTI) (*Ticket, error)

	// Cancel invalidates the user's entry. Returns true iff the user held
	// a valid entry.
	Cancel(ctx context.Context, userID string, m mbti.MBTI) (bool, error)

	// Size returns the number of valid entries in the partition.
	Size(ctx context.Context, m mbti.MBTI) (int, error)

	// SortedTargetsBySize reads all partition sizes in one round-trip and
	// returns them sorted descending by size.
	SortedTargetsBySize(ctx context.Context, targets []mbti.MBTI) ([]QueueSize, error)

	// IsUserInQueue reports whether the user holds a valid entry.
	IsUserInQueue(ctx context.Context, userID string, m mbti.MBTI) (bool, error)
}

// User match states.
const (
	StateQueued  = "QUEUED"
	StateMatched = "MATCHED"
)

// UserState is the per-user state record. Absent records are represented by
// a nil *UserState.
type UserState struct {
	State     string `json:"state"`
	MBTI      string `json:"mbti"`
	RoomID    string `json:"room_id,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`
}

// State tracks the most recent match per user. MATCHED records expire after
// their TTL; expired or absent records mean the user is free to match.
type State interface {
	Get(ctx context.Context, userID string) (*UserState, error)
	SetQueued(ctx context.Context, userID string, m mbti.MBTI) error
	SetMatched(ctx context.Context, userID string, m mbti.MBTI, roomID, partnerID string, ttl time.Duration) error
	Clear(ctx context.Context, userID string) error

	// IsAvailableForMatch is true iff the user's state is absent or QUEUED.
	IsAvailableForMatch(ctx context.Context, userID string) (bool, error)
}

// RoomUser identifies one participant of a new chat room.
type RoomUser struct {
	UserID string `json:"userId"`
	MBTI   string `json:"mbti"`
}

// Room is the chat-room creation payload handed to the chat domain.
type Room struct {
	RoomID    string     `json:"roomId"`
	Users     []RoomUser `json:"users"`
	Timestamp time.Time  `json:"timestamp"`
}

// RoomCreator creates the chat room for a successful pair. Create must be
// idempotent on RoomID.
type RoomCreator interface {
	Create(ctx context.Context, room Room) error
}

// Notifier delivers the match-success payload to the partner's live
// connection. Delivery is at-most-once and a no-op when the user is not
// connected; failures never fail the enclosing request.
type Notifier interface {
	NotifyMatchSuccess(ctx context.Context, userID string, payload Result)
}
