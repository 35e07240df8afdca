package match

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ekani/crew-server/internal/mbti"
	"github.com/ekani/crew-server/internal/metrics"
)

// DefaultMatchExpire is how long a MATCHED record blocks re-pairing while
// the user connects to their chat room.
const DefaultMatchExpire = 60 * time.Second

// Coordinator is the top-level match use case. It drives the re-entry
// check, the partner search, chat-room creation, partner notification, and
// the queue fallback.
type Coordinator struct {
	queue       Queue
	state       State
	finder      *Finder
	rooms       RoomCreator
	notifier    Notifier
	matchExpire time.Duration
}

// NewCoordinator wires the coordinator over its four ports. matchExpire <= 0
// selects DefaultMatchExpire.
func NewCoordinator(queue Queue, state State, rooms RoomCreator, notifier Notifier, matchExpire time.Duration) *Coordinator {
	if matchExpire <= 0 {
		matchExpire = DefaultMatchExpire
	}
	return &Coordinator{
		queue:       queue,
		state:       state,
		finder:      NewFinder(queue),
		rooms:       rooms,
		notifier:    notifier,
		matchExpire: matchExpire,
	}
}

// RequestMatch pairs the user with a compatible waiter, or parks them in
// their MBTI partition. Levels above 4 saturate; levels below 1 are clamped.
func (c *Coordinator) RequestMatch(ctx context.Context, userID string, m mbti.MBTI, level int) (Result, error) {
	if level < 1 {
		level = 1
	}

	// Re-entry: a user with an unexpired MATCHED record should join their
	// existing room instead of being paired again.
	st, err := c.getStateRetry(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if st != nil && st.State == StateMatched {
		metrics.MatchRequestsTotal.WithLabelValues(StatusAlreadyMatched).Inc()
		return Result{
			Status:  StatusAlreadyMatched,
			Message: "already matched, join your chat room",
			RoomID:  st.RoomID,
			MyMBTI:  m.String(),
			Partner: &Partner{UserID: st.PartnerID},
		}, nil
	}

	// A queued user re-requesting (possibly with a new level) is removed
	// first so the request proceeds fresh.
	if inQueue, err := c.queue.IsUserInQueue(ctx, userID, m); err != nil {
		return Result{}, err
	} else if inQueue {
		if _, err := c.queue.Cancel(ctx, userID, m); err != nil {
			return Result{}, err
		}
	}

	ticket, err := NewTicket(userID, m)
	if err != nil {
		return Result{}, err
	}

	partner, err := c.finder.FindPartner(ctx, ticket, level)
	if err != nil {
		return Result{}, err
	}

	if partner != nil {
		available, err := c.state.IsAvailableForMatch(ctx, partner.UserID)
		if err != nil {
			return Result{}, err
		}
		if !available {
			// The partner won a different pairing in the race window.
			// Their dequeued ticket is discarded; they will re-request.
			log.Printf("[match] partner %s no longer available, queueing %s", partner.UserID, userID)
			return c.enqueueWaiting(ctx, ticket)
		}
		return c.pair(ctx, ticket, *partner)
	}

	return c.enqueueWaiting(ctx, ticket)
}

// pair runs the success path: room creation is fatal on failure, the state
// writes and the partner notification are best-effort once the room exists.
func (c *Coordinator) pair(ctx context.Context, mine, partner Ticket) (Result, error) {
	roomID := uuid.New().String()
	now := time.Now()

	room := Room{
		RoomID: roomID,
		Users: []RoomUser{
			{UserID: mine.UserID, MBTI: mine.MBTI.String()},
			{UserID: partner.UserID, MBTI: partner.MBTI.String()},
		},
		Timestamp: now,
	}
	if err := c.createRoomRetry(ctx, room); err != nil {
		return Result{}, err
	}

	if err := c.setMatchedRetry(ctx, mine.UserID, mine.MBTI, roomID, partner.UserID); err != nil {
		log.Printf("[match] set matched for %s: %v", mine.UserID, err)
	}
	if err := c.setMatchedRetry(ctx, partner.UserID, partner.MBTI, roomID, mine.UserID); err != nil {
		log.Printf("[match] set matched for %s: %v", partner.UserID, err)
	}

	c.notifier.NotifyMatchSuccess(ctx, partner.UserID, Result{
		Status:  StatusMatched,
		Message: "match found",
		RoomID:  roomID,
		MyMBTI:  partner.MBTI.String(),
		Partner: &Partner{UserID: mine.UserID, MBTI: mine.MBTI.String()},
	})

	metrics.MatchRequestsTotal.WithLabelValues(StatusMatched).Inc()
	metrics.MatchWaitDuration.Observe(now.Sub(partner.CreatedAt).Seconds())
	log.Printf("[match] paired %s (%s) with %s (%s) room=%s",
		mine.UserID, mine.MBTI, partner.UserID, partner.MBTI, roomID)

	return Result{
		Status:  StatusMatched,
		Message: "match found",
		RoomID:  roomID,
		MyMBTI:  mine.MBTI.String(),
		Partner: &Partner{UserID: partner.UserID, MBTI: partner.MBTI.String()},
	}, nil
}

// enqueueWaiting parks the ticket and reports the partition's wait count.
func (c *Coordinator) enqueueWaiting(ctx context.Context, t Ticket) (Result, error) {
	status := StatusWaiting
	message := "registered in the match queue"

	if err := c.queue.Enqueue(ctx, t); err != nil {
		if err != ErrAlreadyQueued {
			return Result{}, err
		}
		status = StatusAlreadyWaiting
		message = "user is already in the match queue"
	} else {
		if err := c.setQueuedRetry(ctx, t.UserID, t.MBTI); err != nil {
			log.Printf("[match] set queued for %s: %v", t.UserID, err)
		}
	}

	count, err := c.queue.Size(ctx, t.MBTI)
	if err != nil {
		return Result{}, err
	}
	metrics.MatchRequestsTotal.WithLabelValues(status).Inc()
	metrics.QueueSize.WithLabelValues(t.MBTI.String()).Set(float64(count))

	return Result{
		Status:    status,
		Message:   message,
		MyMBTI:    t.MBTI.String(),
		WaitCount: count,
	}, nil
}

// CancelMatch removes the user's queue entry and clears their state. The
// state is cleared even when the queue held no entry, so a cancel that
// raced a pairing still resets the user.
func (c *Coordinator) CancelMatch(ctx context.Context, userID string, m mbti.MBTI) (CancelResult, error) {
	removed, err := c.queue.Cancel(ctx, userID, m)
	if err != nil {
		return CancelResult{}, err
	}

	if err := c.clearStateRetry(ctx, userID); err != nil {
		log.Printf("[match] clear state for %s: %v", userID, err)
	}

	if removed {
		count, err := c.queue.Size(ctx, m)
		if err == nil {
			metrics.QueueSize.WithLabelValues(m.String()).Set(float64(count))
		}
		return CancelResult{Status: StatusCancelled, Message: "match cancelled"}, nil
	}
	return CancelResult{Status: StatusFail, Message: "user not found in the match queue"}, nil
}

// WaitingCount reports the valid waiter count for one partition.
func (c *Coordinator) WaitingCount(ctx context.Context, m mbti.MBTI) (int, error) {
	return c.queue.Size(ctx, m)
}

// The helpers below retry an idempotent port call once on transient
// failure. Non-idempotent queue mutations are never retried.

func (c *Coordinator) getStateRetry(ctx context.Context, userID string) (*UserState, error) {
	st, err := c.state.Get(ctx, userID)
	if err == nil {
		return st, nil
	}
	log.Printf("[match] get state for %s failed, retrying: %v", userID, err)
	return c.state.Get(ctx, userID)
}

func (c *Coordinator) createRoomRetry(ctx context.Context, room Room) error {
	if err := c.rooms.Create(ctx, room); err != nil {
		log.Printf("[match] create room %s failed, retrying: %v", room.RoomID, err)
		return c.rooms.Create(ctx, room)
	}
	return nil
}

func (c *Coordinator) setMatchedRetry(ctx context.Context, userID string, m mbti.MBTI, roomID, partnerID string) error {
	if err := c.state.SetMatched(ctx, userID, m, roomID, partnerID, c.matchExpire); err != nil {
		return c.state.SetMatched(ctx, userID, m, roomID, partnerID, c.matchExpire)
	}
	return nil
}

func (c *Coordinator) setQueuedRetry(ctx context.Context, userID string, m mbti.MBTI) error {
	if err := c.state.SetQueued(ctx, userID, m); err != nil {
		return c.state.SetQueued(ctx, userID, m)
	}
	return nil
}

func (c *Coordinator) clearStateRetry(ctx context.Context, userID string) error {
	if err := c.state.Clear(ctx, userID); err != nil {
		return c.state.Clear(ctx, userID)
	}
	return nil
}
