package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// branchMessage routes an encoded event to one branch's room.
type branchMessage struct {
	BranchID uuid.UUID
	Message  []byte
}

// Hub maintains the set of active clients and broadcasts queue events to the
// TV displays and staff consoles subscribed per branch.
type Hub struct {
	// Registered clients by branch ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *branchMessage

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *branchMessage, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.branchID] == nil {
				h.rooms[client.branchID] = make(map[*Client]bool)
			}
			h.rooms[client.branchID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.branchID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.branchID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[msg.BranchID]
			for client := range clients {
				select {
				case client.send <- msg.Message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[msg.BranchID], client)
					if len(h.rooms[msg.BranchID]) == 0 {
						delete(h.rooms, msg.BranchID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToBranch sends an event to all clients subscribed to a branch.
// This is the public API for handlers to broadcast queue events.
func (h *Hub) BroadcastToBranch(branchID uuid.UUID, v interface{}) {
	message, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: marshal ws event: %v", err)
		return
	}
	h.broadcast <- &branchMessage{
		BranchID: branchID,
		Message:  message,
	}
}
