package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is one user's notification socket. Users identify themselves
// in the upgrade path, so the connection is keyed by user id rather than a
// server-generated session id.
type Connection struct {
	UserID      string
	Conn        net.Conn
	Fd          int
	ConnectedAt time.Time
	LastSeen    time.Time // last frame received (keepalive or control)

	writeMu    sync.Mutex // serializes outbound frames
	processing int32      // atomic flag guarding duplicate epoll dispatch
}

// WriteMessage sends a WebSocket text frame on this connection.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a protocol-level ping frame. The write mutex keeps it
// from interleaving with notification frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// Registry is a thread-safe connection registry with O(1) lookups by user
// id and by file descriptor. At most one connection per user: a reconnect
// replaces the previous socket.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Connection
	byFd   map[int]*Connection
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Connection),
		byFd:   make(map[int]*Connection),
	}
}

// Add registers a connection. If the user already had a live socket, the
// old one is returned so the caller can evict it.
func (r *Registry) Add(conn *Connection) (replaced *Connection) {
	r.mu.Lock()
	if prev, ok := r.byUser[conn.UserID]; ok {
		delete(r.byFd, prev.Fd)
		replaced = prev
	}
	r.byUser[conn.UserID] = conn
	r.byFd[conn.Fd] = conn
	r.mu.Unlock()
	return replaced
}

// Remove drops the connection for a user and closes its socket, but only
// if the registered connection is the same object — a stale removal racing
// a reconnect must not evict the fresh socket. Returns true if removed.
func (r *Registry) Remove(c *Connection) bool {
	r.mu.Lock()
	cur, ok := r.byUser[c.UserID]
	if ok && cur == c {
		delete(r.byUser, c.UserID)
		delete(r.byFd, c.Fd)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// Get returns the connection for a user id, or nil.
func (r *Registry) Get(userID string) *Connection {
	r.mu.RLock()
	conn := r.byUser[userID]
	r.mu.RUnlock()
	return conn
}

// GetByConn resolves a net.Conn back to its Connection via the fd map.
func (r *Registry) GetByConn(c net.Conn) *Connection {
	fd := socketFD(c)
	r.mu.RLock()
	conn := r.byFd[fd]
	r.mu.RUnlock()
	return conn
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.byUser)
	r.mu.RUnlock()
	return n
}

// All returns a snapshot of current connections, safe to iterate without
// holding the lock.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.byUser))
	for _, conn := range r.byUser {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()
	return conns
}
