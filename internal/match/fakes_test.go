package match

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ekani/crew-server/internal/mbti"
)

// memQueue is an in-memory Queue with the same lazy-removal semantics as
// the Redis adapter: a slice per partition for order, a set per partition
// for membership, ghosts skipped on dequeue.
type memQueue struct {
	mu  sync.Mutex
	seq map[mbti.MBTI][]Ticket
	set map[mbti.MBTI]map[string]bool
}

func newMemQueue() *memQueue {
	return &memQueue{
		seq: make(map[mbti.MBTI][]Ticket),
		set: make(map[mbti.MBTI]map[string]bool),
	}
}

func (q *memQueue) Enqueue(_ context.Context, t Ticket) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	members := q.set[t.MBTI]
	if members == nil {
		members = make(map[string]bool)
		q.set[t.MBTI] = members
	}
	if members[t.UserID] {
		return ErrAlreadyQueued
	}
	members[t.UserID] = true
	q.seq[t.MBTI] = append(q.seq[t.MBTI], t)
	return nil
}

func (q *memQueue) DequeueHead(_ context.Context, m mbti.MBTI) (*Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.seq[m]) > 0 {
		head := q.seq[m][0]
		q.seq[m] = q.seq[m][1:]
		if q.set[m][head.UserID] {
			delete(q.set[m], head.UserID)
			return &head, nil
		}
		// Ghost entry, keep popping.
	}
	return nil, nil
}

func (q *memQueue) Cancel(_ context.Context, userID string, m mbti.MBTI) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.set[m][userID] {
		delete(q.set[m], userID)
		return true, nil
	}
	return false, nil
}

func (q *memQueue) Size(_ context.Context, m mbti.MBTI) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.set[m]), nil
}

func (q *memQueue) SortedTargetsBySize(_ context.Context, targets []mbti.MBTI) ([]QueueSize, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sizes := make([]QueueSize, 0, len(targets))
	for _, m := range targets {
		sizes = append(sizes, QueueSize{MBTI: m, Size: len(q.set[m])})
	}
	sort.SliceStable(sizes, func(i, j int) bool { return sizes[i].Size > sizes[j].Size })
	return sizes, nil
}

func (q *memQueue) IsUserInQueue(_ context.Context, userID string, m mbti.MBTI) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.set[m][userID], nil
}

// seqLen exposes the raw sequence length (ghosts included) for assertions.
func (q *memQueue) seqLen(m mbti.MBTI) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.seq[m])
}

// memState is an in-memory State with real TTL expiry.
type memState struct {
	mu      sync.Mutex
	records map[string]UserState
	expiry  map[string]time.Time
}

func newMemState() *memState {
	return &memState{
		records: make(map[string]UserState),
		expiry:  make(map[string]time.Time),
	}
}

func (s *memState) Get(_ context.Context, userID string) (*UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	if exp, ok := s.expiry[userID]; ok && time.Now().After(exp) {
		delete(s.records, userID)
		delete(s.expiry, userID)
		return nil, nil
	}
	out := st
	return &out, nil
}

func (s *memState) SetQueued(_ context.Context, userID string, m mbti.MBTI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = UserState{State: StateQueued, MBTI: m.String()}
	delete(s.expiry, userID)
	return nil
}

func (s *memState) SetMatched(_ context.Context, userID string, m mbti.MBTI, roomID, partnerID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = UserState{State: StateMatched, MBTI: m.String(), RoomID: roomID, PartnerID: partnerID}
	s.expiry[userID] = time.Now().Add(ttl)
	return nil
}

func (s *memState) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	delete(s.expiry, userID)
	return nil
}

func (s *memState) IsAvailableForMatch(ctx context.Context, userID string) (bool, error) {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return st == nil || st.State != StateMatched, nil
}

// memRooms records created rooms and can be told to fail.
type memRooms struct {
	mu      sync.Mutex
	rooms   []Room
	failErr error
}

func (r *memRooms) Create(_ context.Context, room Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.rooms = append(r.rooms, room)
	return nil
}

func (r *memRooms) created() []Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Room, len(r.rooms))
	copy(out, r.rooms)
	return out
}

// memNotifier records notifications.
type memNotifier struct {
	mu    sync.Mutex
	sent  map[string][]Result
	calls int
}

func newMemNotifier() *memNotifier {
	return &memNotifier{sent: make(map[string][]Result)}
}

func (n *memNotifier) NotifyMatchSuccess(_ context.Context, userID string, payload Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[userID] = append(n.sent[userID], payload)
	n.calls++
}

func (n *memNotifier) sentTo(userID string) []Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[userID]
}

// newTestCoordinator builds a coordinator over fresh in-memory ports.
func newTestCoordinator() (*Coordinator, *memQueue, *memState, *memRooms, *memNotifier) {
	queue := newMemQueue()
	state := newMemState()
	rooms := &memRooms{}
	notifier := newMemNotifier()
	c := NewCoordinator(queue, state, rooms, notifier, 60*time.Second)
	return c, queue, state, rooms, notifier
}

func mustMBTI(s string) mbti.MBTI {
	m, err := mbti.Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}
