package match

import (
	"context"
	"testing"
)

func TestFindPartner_EmptyQueuesReturnNone(t *testing.T) {
	f := NewFinder(newMemQueue())
	ctx := context.Background()

	ticket, _ := NewTicket("alice", mustMBTI("INFP"))
	partner, err := f.FindPartner(ctx, ticket, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partner != nil {
		t.Errorf("expected no partner, got %+v", partner)
	}
}

func TestFindPartner_SkipsEmptyPartitions(t *testing.T) {
	q := newMemQueue()
	f := NewFinder(q)
	ctx := context.Background()

	// Only ENTJ (INFP's other best match) has a waiter.
	entj, _ := NewTicket("bob", mustMBTI("ENTJ"))
	if err := q.Enqueue(ctx, entj); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ticket, _ := NewTicket("alice", mustMBTI("INFP"))
	partner, err := f.FindPartner(ctx, ticket, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partner == nil || partner.UserID != "bob" {
		t.Errorf("expected bob, got %+v", partner)
	}
}

func TestFindPartner_OutOfLevelWaitersAreInvisible(t *testing.T) {
	q := newMemQueue()
	f := NewFinder(q)
	ctx := context.Background()

	// ISTJ is bad for INFP: below level 4 the finder must not touch it.
	istj, _ := NewTicket("bob", mustMBTI("ISTJ"))
	q.Enqueue(ctx, istj)

	ticket, _ := NewTicket("alice", mustMBTI("INFP"))
	for level := 1; level <= 3; level++ {
		partner, err := f.FindPartner(ctx, ticket, level)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if partner != nil {
			t.Errorf("level %d should not reach ISTJ, got %+v", level, partner)
		}
	}

	// Still there for the level-4 search.
	partner, err := f.FindPartner(ctx, ticket, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partner == nil || partner.UserID != "bob" {
		t.Errorf("expected bob at level 4, got %+v", partner)
	}
}

func TestFindPartner_GhostOnlyPartitionFallsThrough(t *testing.T) {
	q := newMemQueue()
	f := NewFinder(q)
	ctx := context.Background()

	// ENFJ holds only a ghost; ENTJ holds a real waiter. Sizes put ENTJ
	// first anyway, but even a stale non-zero partition must fall through
	// to the next candidate rather than abort the search.
	ghost, _ := NewTicket("ghost", mustMBTI("ENFJ"))
	q.Enqueue(ctx, ghost)
	q.Cancel(ctx, "ghost", mustMBTI("ENFJ"))

	real, _ := NewTicket("real", mustMBTI("ENTJ"))
	q.Enqueue(ctx, real)

	ticket, _ := NewTicket("alice", mustMBTI("INFP"))
	partner, err := f.FindPartner(ctx, ticket, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partner == nil || partner.UserID != "real" {
		t.Errorf("expected real, got %+v", partner)
	}
}
