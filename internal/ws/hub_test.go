package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cheche-app/api/internal/auth"
	"github.com/cheche-app/api/internal/enum"
	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, branchID uuid.UUID) *Client {
	return &Client{
		hub:      hub,
		branchID: branchID,
		send:     make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	branchID := uuid.New()
	client := mockClient(hub, branchID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[branchID] == nil {
		t.Fatal("branch room not created")
	}
	if !hub.rooms[branchID][client] {
		t.Fatal("client not registered in branch room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	branchID := uuid.New()
	client := mockClient(hub, branchID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[branchID] != nil {
		t.Fatal("branch room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleBranch(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	branch1 := uuid.New()
	branch2 := uuid.New()

	client1 := mockClient(hub, branch1)
	client2 := mockClient(hub, branch2)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToBranch(branch1, map[string]interface{}{
		"type": "queue.called",
		"entry": map[string]interface{}{
			"ticket_number": 7,
		},
	})

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received struct {
			Type  string `json:"type"`
			Entry struct {
				TicketNumber int `json:"ticket_number"`
			} `json:"entry"`
		}
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "queue.called" {
			t.Errorf("expected type 'queue.called', got '%s'", received.Type)
		}
		if received.Entry.TicketNumber != 7 {
			t.Errorf("expected ticket 7, got %d", received.Entry.TicketNumber)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different branch")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameBranch(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	branchID := uuid.New()
	client1 := mockClient(hub, branchID)
	client2 := mockClient(hub, branchID)
	client3 := mockClient(hub, branchID)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToBranch(branchID, map[string]string{"type": "queue.added"})

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "queue.added" {
				t.Errorf("client%d: expected type 'queue.added', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	branchID := uuid.New()
	client1 := mockClient(hub, branchID)
	client2 := mockClient(hub, branchID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[branchID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[branchID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[branchID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[branchID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[branchID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentBranch(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	branch1 := uuid.New()
	client1 := mockClient(hub, branch1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToBranch(uuid.New(), map[string]string{"type": "queue.added"})

	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different branch")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}

func TestCanSubscribe(t *testing.T) {
	branchID := uuid.New()

	cases := []struct {
		name   string
		claims *auth.Claims
		want   bool
	}{
		{"tv access own branch", &auth.Claims{Role: enum.RoleTVAccess, BranchID: branchID}, true},
		{"tv access other branch", &auth.Claims{Role: enum.RoleTVAccess, BranchID: uuid.New()}, false},
		{"field agent own branch", &auth.Claims{Role: enum.RoleFieldAgent, BranchID: branchID}, true},
		{"superadmin any branch", &auth.Claims{Role: enum.RoleSuperadmin}, true},
		{"organization manager any branch", &auth.Claims{Role: enum.RoleOrganizationManager}, true},
		{"customer denied", &auth.Claims{Role: enum.RoleCustomer, BranchID: branchID}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := canSubscribe(tc.claims, branchID); got != tc.want {
				t.Errorf("canSubscribe: got %v, want %v", got, tc.want)
			}
		})
	}
}
