package websocket

import (
	"sort"
	"sync"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// Hub fans refresh events out to connected clients by event type. A client that
// registers after a cycle first receives the latest event it subscribes to.
// It implements port.NotificationService.
type Hub struct {
	clients map[*Client]bool
	latest  map[string]Message

	broadcast  chan *dto.RefreshEventDTO
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		latest:     make(map[string]Message),
		broadcast:  make(chan *dto.RefreshEventDTO, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until Stop.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")

	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.replay(client)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case event := <-h.broadcast:
			msg := Message{Type: event.Type, Data: event}
			h.mu.Lock()
			h.latest[event.Type] = msg
			h.mu.Unlock()
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.Wants(msg.Type) {
			h.enqueue(client, msg)
		}
	}
}

// replay sends the newest stored event of each subscribed type, oldest first.
// Callers hold h.mu.
func (h *Hub) replay(client *Client) {
	var pending []Message
	for eventType, msg := range h.latest {
		if client.Wants(eventType) {
			pending = append(pending, msg)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return eventTime(pending[i]).Before(eventTime(pending[j]))
	})
	for _, msg := range pending {
		if !h.enqueue(client, msg) {
			return
		}
	}
}

// enqueue drops a client whose queue is full. Callers hold h.mu.
func (h *Hub) enqueue(client *Client, msg Message) bool {
	select {
	case client.send <- msg:
		return true
	default:
		close(client.send)
		delete(h.clients, client)
		h.logger.Warn("Subscriber too slow, disconnected", "event", msg.Type)
		return false
	}
}

func eventTime(msg Message) time.Time {
	if event, ok := msg.Data.(*dto.RefreshEventDTO); ok {
		return event.Timestamp
	}
	return time.Time{}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.logger.Info("WebSocket hub stopped")
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a refresh event for all clients. It never blocks the caller.
func (h *Hub) Broadcast(event *dto.RefreshEventDTO) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping refresh event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message is the envelope written to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
