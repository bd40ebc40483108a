package sse

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/logger"
)

// Event is the frame pushed to subscribers: the event type, the topic it was
// published on and the changed entity.
type Event struct {
	Type  string    `json:"type"`
	Topic uuid.UUID `json:"topic"`
	Data  any       `json:"data"`
}

// Client is one open stream. Topics are team, race or event ids.
type Client struct {
	ID     string
	UserID uuid.UUID
	Topics map[uuid.UUID]bool
	Send   chan []byte
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case evt := <-h.broadcast:
			data, err := json.Marshal(evt)
			if err != nil {
				logger.Log.Error("failed to encode realtime event", "type", evt.Type, "error", err)
				continue
			}
			h.mu.RLock()
			for _, client := range h.clients {
				if client.Topics[evt.Topic] {
					select {
					case client.Send <- data:
					default:
						// slow consumer
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish queues an event for every client subscribed to topic. It never
// blocks the caller; when the queue is full the event is dropped.
func (h *Hub) Publish(topic uuid.UUID, eventType string, data any) {
	select {
	case h.broadcast <- Event{Type: eventType, Topic: topic, Data: data}:
	default:
		logger.Log.Warn("realtime queue full, dropping event", "type", eventType, "topic", topic)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
