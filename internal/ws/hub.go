package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/observability"
)

const clientBufferSize = 64

// Client is the hub-side handle for one connection. The transport layer drains
// Outbox and writes frames; the hub only ever enqueues.
type Client struct {
	sessionID string
	send      chan ServerEnvelope
	closeOnce sync.Once
}

// SessionID returns the owning session id.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Outbox exposes the outbound frame stream. Closed when the client detaches.
func (c *Client) Outbox() <-chan ServerEnvelope {
	return c.send
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// enqueue delivers without blocking. A slow consumer with a full buffer loses
// the frame rather than stalling every other room member.
func (c *Client) enqueue(env ServerEnvelope) bool {
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Hub routes server events to connected clients and tracks room membership.
// Rooms are keyed by ticket id; a session may sit in several rooms at once.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
		metrics: metrics,
	}
}

// Attach registers a connection and returns its client handle. Attaching an id
// that is already present replaces the old client and closes its outbox.
func (h *Hub) Attach(sessionID string) *Client {
	client := &Client{
		sessionID: sessionID,
		send:      make(chan ServerEnvelope, clientBufferSize),
	}

	h.mu.Lock()
	if old, ok := h.clients[sessionID]; ok {
		old.close()
		for _, members := range h.rooms {
			if _, in := members[sessionID]; in {
				members[sessionID] = client
			}
		}
	}
	h.clients[sessionID] = client
	h.mu.Unlock()
	return client
}

// Detach removes the client, leaves every room and closes the outbox. Returns
// the rooms the session occupied so callers can announce the departure.
func (h *Hub) Detach(sessionID string) []string {
	h.mu.Lock()
	client, ok := h.clients[sessionID]
	if !ok {
		h.mu.Unlock()
		return nil
	}
	delete(h.clients, sessionID)

	var left []string
	for ticketID, members := range h.rooms {
		if _, in := members[sessionID]; in {
			delete(members, sessionID)
			left = append(left, ticketID)
			if len(members) == 0 {
				delete(h.rooms, ticketID)
			}
		}
	}
	h.mu.Unlock()

	client.close()
	return left
}

// Join adds the session to a ticket room. Unattached sessions are rejected.
func (h *Hub) Join(ticketID, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[sessionID]
	if !ok {
		return false
	}
	members, ok := h.rooms[ticketID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[ticketID] = members
	}
	members[sessionID] = client
	return true
}

// Leave removes the session from a ticket room.
func (h *Hub) Leave(ticketID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[ticketID]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, ticketID)
	}
}

// InRoom reports room membership.
func (h *Hub) InRoom(ticketID, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[ticketID]
	if !ok {
		return false
	}
	_, in := members[sessionID]
	return in
}

// RoomMembers returns the session ids currently in a room.
func (h *Hub) RoomMembers(ticketID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[ticketID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// RoomsOf returns the ticket rooms a session currently occupies.
func (h *Hub) RoomsOf(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for ticketID, members := range h.rooms {
		if _, in := members[sessionID]; in {
			ids = append(ids, ticketID)
		}
	}
	return ids
}

// SendTo delivers an event to one session. Returns false when the session is
// not attached or its buffer is full.
func (h *Hub) SendTo(sessionID string, env ServerEnvelope) bool {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !client.enqueue(env) {
		h.logger.Warn("dropping frame for slow session",
			zap.String("session_id", sessionID),
			zap.String("event", env.Event))
		return false
	}
	h.metrics.RecordBroadcast(env.Event)
	return true
}

// BroadcastRoom delivers an event to every member of a ticket room, skipping
// the listed session ids.
func (h *Hub) BroadcastRoom(ticketID string, env ServerEnvelope, exclude ...string) int {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	h.mu.RLock()
	members := h.rooms[ticketID]
	targets := make([]*Client, 0, len(members))
	for id, client := range members {
		if _, skipped := skip[id]; skipped {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		if client.enqueue(env) {
			delivered++
		} else {
			h.logger.Warn("dropping room frame for slow session",
				zap.String("session_id", client.sessionID),
				zap.String("ticket_id", ticketID),
				zap.String("event", env.Event))
		}
	}
	h.metrics.RecordBroadcast(env.Event)
	return delivered
}

// BroadcastAll delivers an event to every attached session, skipping the
// listed session ids.
func (h *Hub) BroadcastAll(env ServerEnvelope, exclude ...string) int {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		if _, skipped := skip[id]; skipped {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		if client.enqueue(env) {
			delivered++
		}
	}
	h.metrics.RecordBroadcast(env.Event)
	return delivered
}

// ClientCount returns the number of attached sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
