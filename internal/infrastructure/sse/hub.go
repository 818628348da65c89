package sse

import (
	"strings"
	"sync"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

// Client is one subscriber to lock events. A non-empty filter limits the
// stream to events for that service definition.
type Client struct {
	ClientID string
	Filter   string
	Events   chan *executor.LockEvent

	closeOnce sync.Once
}

func NewClient(clientID, filter string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ClientID: clientID,
		Filter:   strings.TrimSpace(filter),
		Events:   make(chan *executor.LockEvent, buffer),
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Events) })
}

func (c *Client) wants(ev *executor.LockEvent) bool {
	// Releases carry no service definition, so filtered clients still see them.
	return c.Filter == "" || ev.ServiceDefinition == "" || strings.EqualFold(c.Filter, ev.ServiceDefinition)
}

// Hub fans lock events out to SSE clients. Slow clients drop events.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[client.ClientID]; ok {
		old.Close()
	}
	h.clients[client.ClientID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[client.ClientID]; ok && c == client {
		delete(h.clients, client.ClientID)
	}
	client.Close()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements executor.EventPublisher.
func (h *Hub) Publish(event executor.LockEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.wants(&event) {
			ev := event
			trySend(c, &ev)
		}
	}
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, ev *executor.LockEvent) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
