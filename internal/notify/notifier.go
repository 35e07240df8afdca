// Package notify delivers match-success payloads to users' live
// notification sockets. Delivery is at-most-once: a user connected to this
// instance gets a direct write, a user connected elsewhere is reached via
// the NATS relay, and a user connected nowhere silently misses the
// notification (they learn of the match from the request response instead).
package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ekani/crew-server/internal/match"
	"github.com/ekani/crew-server/internal/messaging"
	"github.com/ekani/crew-server/internal/metrics"
	"github.com/ekani/crew-server/internal/ws"
)

// Notifier implements match.Notifier over the local WebSocket server and
// an optional NATS relay for multi-instance deployments.
type Notifier struct {
	server *ws.Server
	nats   *messaging.Client
}

// NewNotifier wires a Notifier. nats may be nil for single-instance runs.
func NewNotifier(server *ws.Server, nats *messaging.Client) *Notifier {
	return &Notifier{server: server, nats: nats}
}

// NotifyMatchSuccess sends the payload to the user's socket. Failures are
// logged and swallowed: the chat room already exists, so the match stands
// regardless of whether this delivery lands.
func (n *Notifier) NotifyMatchSuccess(ctx context.Context, userID string, payload match.Result) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[notify] marshal payload for %s: %v", userID, err)
		return
	}

	if n.server.IsConnected(userID) {
		if err := n.server.Send(userID, data); err != nil {
			log.Printf("[notify] local send to %s: %v", userID, err)
			metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
			return
		}
		metrics.NotificationsTotal.WithLabelValues("local").Inc()
		return
	}

	if n.nats == nil {
		log.Printf("[notify] user %s not connected, dropping notification", userID)
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return
	}

	// The user may hold a socket on another instance; that instance's
	// relay subscription forwards the payload. Nobody subscribed means
	// the user is offline and the publish is a no-op.
	if err := n.nats.PublishMatchNotify(userID, data); err != nil {
		log.Printf("[notify] relay publish for %s: %v", userID, err)
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return
	}
	metrics.NotificationsTotal.WithLabelValues("relayed").Inc()
}

// AttachRelay registers the server's connect/disconnect hooks so that each
// locally connected user has a match.notify.<userId> subscription
// forwarding relayed payloads onto their socket.
func AttachRelay(server *ws.Server, nats *messaging.Client) {
	if nats == nil {
		return
	}

	server.SetOnConnect(func(userID string) {
		err := nats.SubscribeMatchNotify(userID, func(data []byte) {
			if err := server.Send(userID, data); err != nil {
				log.Printf("[notify] relay send to %s: %v", userID, err)
			}
		})
		if err != nil {
			log.Printf("[notify] relay subscribe for %s: %v", userID, err)
		}
	})

	server.SetOnDisconnect(func(userID string) {
		if err := nats.UnsubscribeMatchNotify(userID); err != nil {
			log.Printf("[notify] relay unsubscribe for %s: %v", userID, err)
		}
	})
}
