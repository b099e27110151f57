package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxControlSize = 1024
	sendBuffer     = 16
)

// ActionSubscribe replaces the set of refresh event types a subscriber receives.
// An empty event list subscribes to every type.
const ActionSubscribe = "subscribe"

// ControlMessage is the only frame a subscriber may send.
type ControlMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events,omitempty"`
}

var eventTypes = map[string]struct{}{
	dto.EventSnapshotRefreshed: {},
	dto.EventRefreshFailed:     {},
}

// ParseEventTypes validates a subscription list. Blank entries are ignored.
func ParseEventTypes(events []string) ([]string, error) {
	var out []string
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := eventTypes[e]; !ok {
			return nil, fmt.Errorf("unknown event type %q", e)
		}
		out = append(out, e)
	}
	return out, nil
}

// Client is one subscriber to refresh events.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan Message
	logger *logger.Logger

	mu     sync.RWMutex
	events map[string]struct{}
}

// NewClient wraps an upgraded connection subscribed to events, or to every event
// type when none are given. events must come from ParseEventTypes.
func NewClient(hub *Hub, conn *websocket.Conn, log *logger.Logger, events ...string) *Client {
	c := &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, sendBuffer),
		logger: log,
	}
	c.subscribe(events)
	return c
}

func (c *Client) subscribe(events []string) {
	var set map[string]struct{}
	if len(events) > 0 {
		set = make(map[string]struct{}, len(events))
		for _, e := range events {
			set[e] = struct{}{}
		}
	}
	c.mu.Lock()
	c.events = set
	c.mu.Unlock()
}

// Wants reports whether events of eventType are delivered to this subscriber.
func (c *Client) Wants(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.events == nil {
		return true
	}
	_, ok := c.events[eventType]
	return ok
}

// Subscriptions returns the subscribed event types, or nil for all of them.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.events == nil {
		return nil
	}
	out := make([]string, 0, len(c.events))
	for e := range c.events {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func (c *Client) handleControl(data []byte) error {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed control message: %w", err)
	}
	if msg.Action != ActionSubscribe {
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	events, err := ParseEventTypes(msg.Events)
	if err != nil {
		return err
	}
	c.subscribe(events)
	return nil
}

// ReadPump applies subscription changes until the connection drops, then
// unregisters the client. Invalid control frames are logged and ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxControlSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Subscriber connection lost", "error", err.Error())
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := c.handleControl(data); err != nil {
			c.logger.Debug("Ignoring subscriber frame", "error", err.Error())
			continue
		}
		c.logger.Debug("Subscription updated", "events", strings.Join(c.Subscriptions(), ","))
	}
}

// WritePump delivers queued refresh events and keepalive pings. It sends a close
// frame once the hub closes the queue.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.writeEvent(message); err != nil {
				c.logger.Warn("Failed to deliver refresh event", "type", message.Type, "error", err.Error())
				return
			}
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeEvent(message Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(message)
}

func (c *Client) writeControl(kind int, payload []byte) error {
	err := c.conn.WriteControl(kind, payload, time.Now().Add(writeWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
