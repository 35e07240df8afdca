package match

import (
	"strings"
	"testing"
	"time"
)

func TestNewTicket_Validation(t *testing.T) {
	if _, err := NewTicket("", mustMBTI("INFP")); err == nil {
		t.Error("empty user id should be rejected")
	}
	if _, err := NewTicket("alice", "ABCD"); err == nil {
		t.Error("invalid MBTI should be rejected")
	}

	ticket, err := NewTicket("alice", mustMBTI("INFP"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.CreatedAt.IsZero() {
		t.Error("ticket should be stamped with a creation time")
	}
}

func TestTicket_EncodeDecode(t *testing.T) {
	ticket := Ticket{
		UserID:    "alice",
		MBTI:      mustMBTI("ENFJ"),
		CreatedAt: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}

	data, err := ticket.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"userId":"alice"`) {
		t.Errorf("unexpected wire format: %s", data)
	}

	got, err := DecodeTicket(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != "alice" || got.MBTI != "ENFJ" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(ticket.CreatedAt) {
		t.Errorf("timestamp mismatch: %v vs %v", got.CreatedAt, ticket.CreatedAt)
	}
}

func TestDecodeTicket_RejectsCorruptEntries(t *testing.T) {
	cases := []string{
		`not json`,
		`{"mbti":"INFP","createdAt":"2025-03-01T12:30:00Z"}`, // no user
		`{"userId":"alice","mbti":"WXYZ"}`,                   // bad mbti
	}
	for _, raw := range cases {
		if _, err := DecodeTicket([]byte(raw)); err == nil {
			t.Errorf("DecodeTicket(%s) should fail", raw)
		}
	}
}
