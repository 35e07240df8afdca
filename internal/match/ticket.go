// Package match implements the MBTI match-making core: the partitioned
// waiting queue, the per-user match state, the compatibility-expansion
// partner search, and the coordinator that ties them to chat-room creation
// and partner notification.
package match

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ekani/crew-server/internal/mbti"
)

// Ticket is an immutable record of a user's intent to be matched in one
// MBTI partition. Two tickets are the same entry iff their UserID is equal.
type Ticket struct {
	UserID    string
	MBTI      mbti.MBTI
	CreatedAt time.Time
}

// NewTicket builds a ticket for the given user, stamped with the current time.
func NewTicket(userID string, m mbti.MBTI) (Ticket, error) {
	if userID == "" {
		return Ticket{}, fmt.Errorf("match: user id is required")
	}
	if !m.IsValid() {
		return Ticket{}, fmt.Errorf("match: invalid MBTI %q", m)
	}
	return Ticket{UserID: userID, MBTI: m, CreatedAt: time.Now()}, nil
}

// ticketJSON is the queue entry wire format.
type ticketJSON struct {
	UserID    string `json:"userId"`
	MBTI      string `json:"mbti"`
	CreatedAt string `json:"createdAt"`
}

// Encode serializes the ticket for storage as a queue entry.
func (t Ticket) Encode() ([]byte, error) {
	return json.Marshal(ticketJSON{
		UserID:    t.UserID,
		MBTI:      t.MBTI.String(),
		CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
	})
}

// DecodeTicket parses a stored queue entry. Entries with an unknown MBTI or
// missing user id are rejected so the dequeue loop can discard them.
func DecodeTicket(data []byte) (Ticket, error) {
	var raw ticketJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Ticket{}, fmt.Errorf("match: decode ticket: %w", err)
	}
	if raw.UserID == "" {
		return Ticket{}, fmt.Errorf("match: decode ticket: empty user id")
	}
	m, err := mbti.Parse(raw.MBTI)
	if err != nil {
		return Ticket{}, fmt.Errorf("match: decode ticket: %w", err)
	}
	t := Ticket{UserID: raw.UserID, MBTI: m}
	if raw.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw.CreatedAt); err == nil {
			t.CreatedAt = ts
		}
	}
	return t, nil
}
