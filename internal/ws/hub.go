// Package ws implements the WebSocket hub pushing committed change events
// to connected dashboard instances, partitioned by tenant.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/metrics"
	"github.com/opsledger/opsledger/internal/models"
)

// Hub channel buffer sizes and limits.
const (
	broadcastBuffer = 256
	registerBuffer  = 64
	maxClients      = 500
	maxPerTenant    = 25
)

// tenantBroadcast is sent through the broadcast channel to the Run goroutine.
type tenantBroadcast struct {
	tenantID string
	msg      []byte
}

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type       string        `json:"type"`
	Collection string        `json:"collection"`
	EntityID   string        `json:"entity_id"`
	Action     models.Action `json:"action"`
	Time       time.Time     `json:"time"`
}

// Hub manages active WebSocket clients and broadcasts change events.
// All client map mutations happen exclusively in the Run goroutine.
type Hub struct {
	clients     map[*Client]bool
	tenantCount map[string]int
	register    chan *Client
	unregister  chan *Client
	broadcast   chan tenantBroadcast
	log         *logrus.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		tenantCount: make(map[string]int),
		register:    make(chan *Client, registerBuffer),
		unregister:  make(chan *Client, registerBuffer),
		broadcast:   make(chan tenantBroadcast, broadcastBuffer),
		log:         log,
	}
}

// BroadcastChange queues a committed change event for a tenant's clients.
// Never blocks the mutation path; the event is dropped if the hub is
// saturated.
func (h *Hub) BroadcastChange(event models.ChangeEvent) {
	msg, err := json.Marshal(Event{
		Type:       "change",
		Collection: event.Collection,
		EntityID:   event.EntityID,
		Action:     event.Action,
		Time:       event.Timestamp,
	})
	if err != nil {
		h.log.WithError(err).Warn("marshaling change event")

		return
	}

	select {
	case h.broadcast <- tenantBroadcast{tenantID: event.TenantID, msg: msg}:
	default:
		h.log.Warn("hub broadcast buffer full, dropping event")
	}
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
	}
}

// Run starts the hub event loop. It should be run as a goroutine and exits
// when the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.closeSend()
			}

			return

		case client := <-h.register:
			if len(h.clients) >= maxClients {
				h.log.Warn("global connection limit reached, dropping client")
				client.closeSend()
				continue
			}
			if h.tenantCount[client.TenantID] >= maxPerTenant {
				h.log.WithField("tenant_id", client.TenantID).Warn("per-tenant connection limit reached, dropping client")
				client.closeSend()
				continue
			}
			h.clients[client] = true
			h.tenantCount[client.TenantID]++
			metrics.WSConnections.Set(float64(len(h.clients)))
			h.log.WithField("total", len(h.clients)).Debug("ws client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.tenantCount[client.TenantID]--
				if h.tenantCount[client.TenantID] <= 0 {
					delete(h.tenantCount, client.TenantID)
				}
			}
			metrics.WSConnections.Set(float64(len(h.clients)))

		case b := <-h.broadcast:
			for client := range h.clients {
				if client.TenantID != b.tenantID {
					continue
				}
				select {
				case client.send <- b.msg:
				default:
					// Slow consumer; drop it rather than stall the hub.
					client.closeSend()
					delete(h.clients, client)
					h.tenantCount[client.TenantID]--
				}
			}
		}
	}
}
