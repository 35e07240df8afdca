// Package messaging provides a NATS client wrapper for pub/sub messaging
// between crew services. It handles connection lifecycle, per-user
// notification subjects, and the room-created event stream consumed by the
// history worker.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects used across crew services.
const (
	SubjectMatchNotify = "match.notify"      // + .<user_id>
	SubjectRoomCreated = "chat.room.created" // room records for the history worker

	// roomWorkerGroup is the queue group for room-created consumers, so
	// multiple workers share the stream without duplicate inserts.
	roomWorkerGroup = "roomworkers"
)

// Client wraps the NATS connection with helper methods for pub/sub.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "crew",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishMatchNotify publishes a match notification for a specific user.
// Instances that hold the user's WebSocket forward it; everyone else
// ignores it.
func (c *Client) PublishMatchNotify(userID string, data []byte) error {
	return c.Publish(SubjectMatchNotify+"."+userID, data)
}

// SubscribeMatchNotify subscribes to match notifications for a user. Called
// when the user's WebSocket connects; unsubscribed on disconnect.
func (c *Client) SubscribeMatchNotify(userID string, handler func(data []byte)) error {
	subject := SubjectMatchNotify + "." + userID
	return c.subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeMatchNotify drops the user's notification subscription.
func (c *Client) UnsubscribeMatchNotify(userID string) error {
	return c.unsubscribe(SubjectMatchNotify + "." + userID)
}

// PublishRoomCreated publishes a room record for the history worker.
func (c *Client) PublishRoomCreated(data []byte) error {
	return c.Publish(SubjectRoomCreated, data)
}

// SubscribeRoomCreated subscribes to room-created events as part of the
// worker queue group, so concurrent workers split the stream.
func (c *Client) SubscribeRoomCreated(handler func(data []byte)) error {
	sub, err := c.conn.QueueSubscribe(SubjectRoomCreated, roomWorkerGroup, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectRoomCreated, err)
	}

	c.mu.Lock()
	c.subs[SubjectRoomCreated] = sub
	c.mu.Unlock()
	return nil
}

// subscribe registers a handler and stores the subscription for cleanup. A
// previous subscription on the same subject (user reconnected) is dropped
// first so payloads are not delivered twice.
func (c *Client) subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	prev := c.subs[subject]
	c.subs[subject] = sub
	c.mu.Unlock()

	if prev != nil {
		if err := prev.Unsubscribe(); err != nil {
			log.Printf("[nats] drop stale subscription %s: %v", subject, err)
		}
	}
	return nil
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *Client) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
