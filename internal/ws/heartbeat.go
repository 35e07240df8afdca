package ws

import (
	"log"
	"time"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration // how often to ping
	Timeout  time.Duration // max wait for activity after a ping
}

// DefaultHeartbeatConfig returns defaults suited to browser clients.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// StartHeartbeat runs a background loop that pings every connection and
// evicts those with no activity within Interval + Timeout. The goroutine
// exits when the server's done channel closes.
func StartHeartbeat(server *Server, config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-server.done:
				return
			case <-ticker.C:
				checkConnections(server, config)
			}
		}
	}()
}

// checkConnections evicts stale connections and pings live ones. Browsers
// answer the protocol-level ping automatically with a pong, which counts
// as activity on the next read.
func checkConnections(server *Server, config HeartbeatConfig) {
	deadline := config.Interval + config.Timeout
	now := time.Now()

	for _, c := range server.Connections().All() {
		if now.Sub(c.LastSeen) > deadline {
			log.Printf("ws: heartbeat timeout user=%s last_activity=%s ago",
				c.UserID, now.Sub(c.LastSeen).Round(time.Second))
			server.RemoveConnection(c)
			continue
		}

		if err := c.WritePing(); err != nil {
			log.Printf("ws: heartbeat ping failed user=%s: %v", c.UserID, err)
			server.RemoveConnection(c)
		}
	}
}
