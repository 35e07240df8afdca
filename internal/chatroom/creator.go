package chatroom

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ekani/crew-server/internal/match"
	"github.com/ekani/crew-server/internal/messaging"
	"github.com/ekani/crew-server/internal/metrics"
)

// Creator implements the coordinator's room-creation port: the record is
// written to Redis, then a room-created event is published for the history
// worker. The event is best-effort — the room exists once the store write
// succeeds.
type Creator struct {
	store *Store
	nats  *messaging.Client
}

// NewCreator wires a Creator over the store and an optional NATS client.
func NewCreator(store *Store, nats *messaging.Client) *Creator {
	return &Creator{store: store, nats: nats}
}

// Create satisfies match.RoomCreator.
func (c *Creator) Create(ctx context.Context, room match.Room) error {
	created, err := c.store.Create(ctx, room)
	if err != nil {
		return err
	}
	if !created {
		// Retry of an already-created room. Nothing to publish.
		return nil
	}

	metrics.RoomsCreatedTotal.Inc()

	if c.nats == nil {
		return nil
	}
	data, err := json.Marshal(Record{RoomID: room.RoomID, Users: room.Users, CreatedAt: room.Timestamp})
	if err != nil {
		log.Printf("[chatroom] marshal room event %s: %v", room.RoomID, err)
		return nil
	}
	if err := c.nats.PublishRoomCreated(data); err != nil {
		log.Printf("[chatroom] publish room event %s: %v", room.RoomID, err)
	}
	return nil
}
