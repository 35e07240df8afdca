package match

import (
	"context"

	"github.com/ekani/crew-server/internal/mbti"
)

// Finder performs the compatibility-expansion partner search.
type Finder struct {
	queue Queue
}

// NewFinder creates a finder over the given queue.
func NewFinder(queue Queue) *Finder {
	return &Finder{queue: queue}
}

// FindPartner returns the best waiting partner for the ticket at the given
// expansion level, or nil when none of the target partitions has a valid
// waiter. Partitions are visited largest-first: draining the most congested
// queue is deliberate system-wide relief, even when a smaller queue holds a
// higher-tier match.
func (f *Finder) FindPartner(ctx context.Context, t Ticket, level int) (*Ticket, error) {
	targets := mbti.Targets(t.MBTI, level)
	if len(targets) == 0 {
		return nil, nil
	}

	sorted, err := f.queue.SortedTargetsBySize(ctx, targets)
	if err != nil {
		return nil, err
	}

	for _, qs := range sorted {
		if qs.Size == 0 {
			continue
		}
		partner, err := f.queue.DequeueHead(ctx, qs.MBTI)
		if err != nil {
			return nil, err
		}
		if partner != nil {
			return partner, nil
		}
	}
	return nil, nil
}
