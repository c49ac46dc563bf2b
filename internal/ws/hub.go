package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/mejakita/api/internal/reconcile"
	"github.com/mejakita/api/internal/transition"
)

// Room names. Guests join their table's room; kitchen and floor staff
// join the shared orders room.
const RoomOrders = "orders"

func RoomTable(tableID string) string {
	return "table:" + tableID
}

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const EventOrderUpdated = "order.updated"

// roomEvent is an internal struct for routing events to specific rooms
type roomEvent struct {
	Room  string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to
// them. It also hands out in-process per-order subscriptions so
// server-side observers share the same event stream as browsers.
type Hub struct {
	// Registered clients by room name
	rooms map[string]map[*Client]bool

	// In-process per-order observers
	watchers map[uuid.UUID]map[*orderSub]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *roomEvent

	// Mutex for thread-safe room and watcher access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		watchers:   make(map[uuid.UUID]map[*orderSub]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Room]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients in this room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.Room], client)
					if len(h.rooms[event.Room]) == 0 {
						delete(h.rooms, event.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRoom sends an event to all clients subscribed to a room.
func (h *Hub) BroadcastToRoom(room string, event Event) {
	h.broadcast <- &roomEvent{
		Room:  room,
		Event: event,
	}
}

// PublishOrderEvent fans one order change out to the order's table
// room, the shared orders room, and every in-process observer of that
// order. Satisfies the transition service's publisher dependency.
func (h *Hub) PublishOrderEvent(ev transition.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: marshal order event %s: %v", ev.OrderID, err)
		return
	}

	event := Event{Type: EventOrderUpdated, Payload: payload}
	h.BroadcastToRoom(RoomOrders, event)
	if ev.TableID != nil {
		h.BroadcastToRoom(RoomTable(*ev.TableID), event)
	}

	// Sends stay under the read lock: Close removes and closes a
	// subscription under the write lock, so a send can never hit a
	// closed channel.
	h.mu.RLock()
	for sub := range h.watchers[ev.OrderID] {
		select {
		case sub.events <- payload:
		default:
			// Observer fell behind; it reconverges on its next poll.
		}
	}
	h.mu.RUnlock()
}

// Subscribe opens an in-process push subscription for one order.
// The returned subscription must be closed by the caller.
func (h *Hub) Subscribe(ctx context.Context, orderID uuid.UUID) (reconcile.Subscription, error) {
	sub := &orderSub{
		hub:     h,
		orderID: orderID,
		events:  make(chan []byte, 16),
	}

	h.mu.Lock()
	if h.watchers[orderID] == nil {
		h.watchers[orderID] = make(map[*orderSub]bool)
	}
	h.watchers[orderID][sub] = true
	h.mu.Unlock()

	return sub, nil
}

// orderSub is an in-process subscription backed by the hub's watcher
// registry.
type orderSub struct {
	hub     *Hub
	orderID uuid.UUID
	events  chan []byte
	once    sync.Once
}

func (s *orderSub) Events() <-chan []byte { return s.events }

func (s *orderSub) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if subs, ok := s.hub.watchers[s.orderID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.watchers, s.orderID)
			}
		}
		s.hub.mu.Unlock()
		close(s.events)
	})
	return nil
}
