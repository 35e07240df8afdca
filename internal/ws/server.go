// Package ws implements the match notification WebSocket server. Clients
// connect to /ws/match/{userId} and hold the socket open to receive match
// payloads; anything they send is treated as a keepalive, read and
// discarded. Connections are multiplexed with epoll and read by a bounded
// worker pool.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/ekani/crew-server/internal/metrics"
)

// Config holds tunable parameters for the WebSocket server.
type Config struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	WorkerPoolSize int           // max concurrent read-worker goroutines
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // timeout for WebSocket read operations
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 100000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Server is the epoll-based WebSocket server plus the shared HTTP surface:
// it owns the mux so the REST handlers, /health and /metrics ride the same
// listener.
type Server struct {
	config     Config
	epoll      *Epoll
	conns      *Registry
	workerPool chan struct{}
	mux        *http.ServeMux
	httpServer *http.Server

	// UpgradeGate, if set, can refuse an upgrade (e.g. per-IP rate
	// limiting). Return false to reject with 429.
	UpgradeGate func(r *http.Request) bool

	onConnect    func(userID string)
	onDisconnect func(userID string)

	done      chan struct{}
	startedAt time.Time
	draining  atomic.Bool
}

// NewServer creates a Server with the given configuration.
func NewServer(config Config) *Server {
	s := &Server{
		config:     config,
		conns:      NewRegistry(),
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		mux:        http.NewServeMux(),
		done:       make(chan struct{}),
	}
	return s
}

// Handle mounts an additional HTTP handler on the server's mux. Must be
// called before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// SetOnConnect registers a callback invoked after a user's socket is
// registered (used to attach the cross-instance notify relay).
func (s *Server) SetOnConnect(fn func(userID string)) { s.onConnect = fn }

// SetOnDisconnect registers a callback invoked after a user's socket is
// removed.
func (s *Server) SetOnDisconnect(fn func(userID string)) { s.onDisconnect = fn }

// Start initializes epoll, mounts the built-in routes, starts the event
// loop and heartbeat, and blocks on ListenAndServe.
func (s *Server) Start() error {
	var err error
	s.epoll, err = NewEpoll()
	if err != nil {
		return fmt.Errorf("ws: failed to create epoll: %w", err)
	}

	s.startedAt = time.Now()

	s.mux.HandleFunc("/ws/match/", s.handleUpgrade)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: s.mux,
	}

	go s.startEventLoop()

	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("ws: server listening on %s (workers=%d, max_conns=%d)",
		s.config.ListenAddr, s.config.WorkerPoolSize, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade upgrades /ws/match/{userId} to a WebSocket connection and
// registers it for notifications.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/ws/match/")
	if userID == "" || strings.Contains(userID, "/") {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if s.UpgradeGate != nil && !s.UpgradeGate(r) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &Connection{
		UserID:      userID,
		Conn:        conn,
		Fd:          socketFD(conn),
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
	}

	if replaced := s.conns.Add(c); replaced != nil {
		_ = s.epoll.Remove(replaced.Conn)
		replaced.Close()
		log.Printf("ws: replaced stale connection user=%s", userID)
	}
	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if err := s.epoll.Add(conn); err != nil {
		log.Printf("ws: epoll add failed user=%s: %v", userID, err)
		s.conns.Remove(c)
		return
	}

	if s.onConnect != nil {
		s.onConnect(userID)
	}

	log.Printf("ws: new connection user=%s fd=%d (total=%d)", userID, c.Fd, s.conns.Count())
}

// handleHealth reports liveness, connection count and uptime as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// startEventLoop dispatches ready connections to the bounded worker pool.
func (s *Server) startEventLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conns, err := s.epoll.Wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				if isEINTR(err) {
					continue
				}
				log.Printf("ws: epoll wait error: %v", err)
				continue
			}
		}

		for _, conn := range conns {
			conn := conn

			s.workerPool <- struct{}{}
			go func() {
				defer func() { <-s.workerPool }()
				s.handleConn(conn)
			}()
		}
	}
}

// handleConn reads a single frame from a ready connection. Control frames
// are answered per protocol; data frames are keepalives — their payload is
// drained and discarded, and the connection's liveness timestamp advances.
func (s *Server) handleConn(netConn net.Conn) {
	c := s.conns.GetByConn(netConn)
	if c == nil {
		return
	}

	// Guard against duplicate dispatch from level-triggered epoll.
	if !atomic.CompareAndSwapInt32(&c.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.processing, 0)

	if s.config.ReadTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	header, reader, err := wsutil.NextReader(netConn, ws.StateServerSide)
	if err != nil {
		// A read timeout means no data was available (stale epoll
		// dispatch); the heartbeat handles genuinely dead connections.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		s.RemoveConnection(c)
		return
	}

	_ = netConn.SetReadDeadline(time.Time{})

	c.LastSeen = time.Now()

	if header.OpCode.IsControl() {
		payload, _ := io.ReadAll(reader)
		switch header.OpCode {
		case ws.OpPing:
			c.writeMu.Lock()
			_ = ws.WriteFrame(netConn, ws.NewPongFrame(payload))
			c.writeMu.Unlock()
		case ws.OpClose:
			c.writeMu.Lock()
			_ = ws.WriteFrame(netConn, ws.NewCloseFrame(payload))
			c.writeMu.Unlock()
			s.RemoveConnection(c)
		}
		return
	}

	// Keepalive frame: drain and discard.
	_, _ = io.Copy(io.Discard, reader)
}

// RemoveConnection removes a connection from epoll and the registry and
// closes the socket. Exported so the heartbeat can evict dead connections.
func (s *Server) RemoveConnection(c *Connection) {
	_ = s.epoll.Remove(c.Conn)

	// Only proceed if this exact connection was still registered; this
	// prevents double cleanup when a read error races the heartbeat.
	if !s.conns.Remove(c) {
		return
	}
	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.onDisconnect != nil {
		s.onDisconnect(c.UserID)
	}

	log.Printf("ws: connection closed user=%s (total=%d)", c.UserID, s.conns.Count())
}

// Send writes a WebSocket text frame to the user's connection. Returns an
// error when the user is not connected to this instance.
func (s *Server) Send(userID string, data []byte) error {
	c := s.conns.Get(userID)
	if c == nil {
		return fmt.Errorf("ws: user %s not connected", userID)
	}

	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Clear the deadline so it doesn't affect heartbeat pings.
	_ = c.Conn.SetWriteDeadline(time.Time{})

	return err
}

// IsConnected reports whether the user holds a live socket on this instance.
func (s *Server) IsConnected(userID string) bool {
	return s.conns.Get(userID) != nil
}

// Connections exposes the registry (heartbeat, diagnostics).
func (s *Server) Connections() *Registry {
	return s.conns
}

// Shutdown gracefully drains connections: new upgrades are refused, the
// HTTP listener stops, and remaining sockets are force-closed after the
// drain window.
func (s *Server) Shutdown() error {
	log.Println("ws: initiating graceful shutdown...")

	s.draining.Store(true)

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := s.httpServer.Shutdown(httpCtx); err != nil {
		log.Printf("ws: http shutdown error: %v", err)
	}

	connCount := s.conns.Count()
	log.Printf("ws: draining %d connections (30s timeout)...", connCount)

	drainDeadline := time.After(30 * time.Second)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

drainLoop:
	for {
		select {
		case <-drainDeadline:
			remaining := s.conns.Count()
			if remaining > 0 {
				log.Printf("ws: drain timeout, force-closing %d connections", remaining)
			}
			break drainLoop
		case <-ticker.C:
			remaining := s.conns.Count()
			if remaining == 0 {
				log.Println("ws: all connections drained")
				break drainLoop
			}
			log.Printf("ws: draining... %d connections remaining", remaining)
		}
	}

	close(s.done)

	for _, c := range s.conns.All() {
		if s.onDisconnect != nil {
			s.onDisconnect(c.UserID)
		}
		_ = s.epoll.Remove(c.Conn)
		c.Close()
	}

	if s.epoll != nil {
		_ = s.epoll.Close()
	}

	log.Printf("ws: server stopped, all connections closed")
	return nil
}

// isEINTR checks for interrupted-syscall errors, expected during signal
// handling.
func isEINTR(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == "interrupted system call" ||
		err.Error() == "errno 4"
}
