// Package api exposes the REST surface of the match domain:
// POST /match/request, POST /match/cancel, and the diagnostic
// GET /match/queue/{mbti}.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/ekani/crew-server/internal/match"
	"github.com/ekani/crew-server/internal/mbti"
	"github.com/ekani/crew-server/internal/ratelimit"
)

// Coordinator is the slice of the match use case the handlers need.
type Coordinator interface {
	RequestMatch(ctx context.Context, userID string, m mbti.MBTI, level int) (match.Result, error)
	CancelMatch(ctx context.Context, userID string, m mbti.MBTI) (match.CancelResult, error)
	WaitingCount(ctx context.Context, m mbti.MBTI) (int, error)
}

// Handler serves the match REST endpoints.
type Handler struct {
	coordinator Coordinator
	limiter     *ratelimit.Limiter // nil disables rate limiting
}

// NewHandler creates a Handler. limiter may be nil (tests, single-user dev).
func NewHandler(coordinator Coordinator, limiter *ratelimit.Limiter) *Handler {
	return &Handler{coordinator: coordinator, limiter: limiter}
}

// Register mounts the handlers on the mux.
func (h *Handler) Register(mux interface {
	Handle(pattern string, handler http.Handler)
}) {
	mux.Handle("/match/request", http.HandlerFunc(h.handleRequest))
	mux.Handle("/match/cancel", http.HandlerFunc(h.handleCancel))
	mux.Handle("/match/queue/", http.HandlerFunc(h.handleQueueStatus))
}

// matchRequest is the POST /match/request body.
type matchRequest struct {
	UserID string `json:"userId"`
	MBTI   string `json:"mbti"`
	Level  int    `json:"level"`
}

// cancelRequest is the POST /match/cancel body.
type cancelRequest struct {
	UserID string `json:"userId"`
	MBTI   string `json:"mbti"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	m, err := mbti.Parse(req.MBTI)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid MBTI")
		return
	}

	if req.Level == 0 {
		req.Level = 1
	}

	if h.limiter != nil {
		allowed, _ := h.limiter.Allow(r.Context(), req.UserID, ratelimit.RuleMatch)
		if !allowed {
			writeError(w, http.StatusTooManyRequests, "too many match requests")
			return
		}
	}

	result, err := h.coordinator.RequestMatch(r.Context(), req.UserID, m, req.Level)
	if err != nil {
		log.Printf("[api] request match user=%s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "match request failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	m, err := mbti.Parse(req.MBTI)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid MBTI")
		return
	}

	result, err := h.coordinator.CancelMatch(r.Context(), req.UserID, m)
	if err != nil {
		log.Printf("[api] cancel match user=%s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleQueueStatus serves GET /match/queue/{mbti}: the valid waiter count
// for one partition.
func (h *Handler) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/match/queue/")
	m, err := mbti.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid MBTI")
		return
	}

	count, err := h.coordinator.WaitingCount(r.Context(), m)
	if err != nil {
		log.Printf("[api] queue status %s: %v", m, err)
		writeError(w, http.StatusInternalServerError, "queue lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		MBTI         string `json:"mbti"`
		WaitingCount int    `json:"waiting_count"`
	}{MBTI: m.String(), WaitingCount: count})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, struct {
		Detail string `json:"detail"`
	}{Detail: detail})
}
