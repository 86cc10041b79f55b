package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cheche-app/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxTicketRetries bounds the ticket-number race retry loop.
const maxTicketRetries = 3

// QueueStore defines the database methods needed by queue handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type QueueStore interface {
	GetNextTicketNumber(ctx context.Context, branchID uuid.UUID) (int32, error)
	CreateQueueEntry(ctx context.Context, arg database.CreateQueueEntryParams) (database.QueueEntry, error)
	ListWaitingQueueByBranch(ctx context.Context, branchID uuid.UUID) ([]database.QueueEntry, error)
	CallNextQueueEntry(ctx context.Context, branchID uuid.UUID) (database.QueueEntry, error)
	MarkQueueEntryServed(ctx context.Context, arg database.MarkQueueEntryServedParams) (database.QueueEntry, error)
}

// QueueBroadcaster pushes queue events to the branch's TV displays.
// Satisfied by *ws.Hub.
type QueueBroadcaster interface {
	BroadcastToBranch(branchID uuid.UUID, v interface{})
}

// QueueHandler handles walk-in queue endpoints.
type QueueHandler struct {
	store QueueStore
	hub   QueueBroadcaster
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(store QueueStore, hub QueueBroadcaster) *QueueHandler {
	return &QueueHandler{store: store, hub: hub}
}

// RegisterRoutes registers queue endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/queue
func (h *QueueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Post("/call-next", h.CallNext)
	r.Post("/{id}/serve", h.Serve)
}

// --- Request / Response types ---

type addQueueRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	PhoneNumber     string `json:"phone_number"`
	ReservationID   string `json:"reservation_id"`
	BranchServiceID string `json:"branch_service_id"`
}

type queueEntryResponse struct {
	ID              uuid.UUID  `json:"id"`
	BranchID        uuid.UUID  `json:"branch_id"`
	ReservationID   *string    `json:"reservation_id"`
	TicketNumber    int32      `json:"ticket_number"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	PhoneNumber     *string    `json:"phone_number"`
	BranchServiceID *string    `json:"branch_service_id"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	CalledAt        *time.Time `json:"called_at"`
}

// queueEvent is the websocket payload for TV displays.
type queueEvent struct {
	Type  string             `json:"type"`
	Entry queueEntryResponse `json:"entry"`
}

func toQueueEntryResponse(e database.QueueEntry) queueEntryResponse {
	resp := queueEntryResponse{
		ID:           e.ID,
		BranchID:     e.BranchID,
		TicketNumber: e.TicketNumber,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Status:       e.Status,
		CreatedAt:    e.CreatedAt,
	}
	if e.ReservationID.Valid {
		s := e.ReservationID.UUID.String()
		resp.ReservationID = &s
	}
	if e.PhoneNumber.Valid {
		resp.PhoneNumber = &e.PhoneNumber.String
	}
	if e.BranchServiceID.Valid {
		s := e.BranchServiceID.UUID.String()
		resp.BranchServiceID = &s
	}
	if e.CalledAt.Valid {
		resp.CalledAt = &e.CalledAt.Time
	}
	return resp
}

// --- Handlers ---

// List returns today's waiting and called entries for the branch.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	entries, err := h.store.ListWaitingQueueByBranch(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: list queue: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]queueEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toQueueEntryResponse(e)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Add puts a walk-in on today's queue. Ticket numbers are MAX+1 per branch
// per day; concurrent adds can race on the same number, so the insert is
// retried on the unique-constraint violation.
func (h *QueueHandler) Add(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req addQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.FirstName == "" || req.LastName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "first_name and last_name are required"})
		return
	}

	reservationID := uuid.NullUUID{}
	if req.ReservationID != "" {
		id, err := uuid.Parse(req.ReservationID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation_id"})
			return
		}
		reservationID = uuid.NullUUID{UUID: id, Valid: true}
	}

	branchServiceID := uuid.NullUUID{}
	if req.BranchServiceID != "" {
		id, err := uuid.Parse(req.BranchServiceID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch_service_id"})
			return
		}
		branchServiceID = uuid.NullUUID{UUID: id, Valid: true}
	}

	var entry database.QueueEntry
	var lastErr error
	for attempt := 0; attempt < maxTicketRetries; attempt++ {
		ticket, err := h.store.GetNextTicketNumber(r.Context(), branchID)
		if err != nil {
			log.Printf("ERROR: next ticket number: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		entry, err = h.store.CreateQueueEntry(r.Context(), database.CreateQueueEntryParams{
			BranchID:        branchID,
			ReservationID:   reservationID,
			TicketNumber:    ticket,
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			PhoneNumber:     textOrNull(req.PhoneNumber),
			BranchServiceID: branchServiceID,
		})
		if err == nil {
			lastErr = nil
			break
		}
		if isUniqueViolation(err) {
			lastErr = err
			continue
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation_id or branch_service_id"})
			return
		}
		log.Printf("ERROR: create queue entry: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if lastErr != nil {
		log.Printf("ERROR: create queue entry after retries: %v", lastErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toQueueEntryResponse(entry)
	h.hub.BroadcastToBranch(branchID, queueEvent{Type: "queue.added", Entry: resp})

	writeJSON(w, http.StatusCreated, resp)
}

// CallNext promotes the oldest waiting entry to called and announces it on
// the branch's TV feed.
func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	entry, err := h.store.CallNextQueueEntry(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "queue is empty"})
			return
		}
		log.Printf("ERROR: call next queue entry: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toQueueEntryResponse(entry)
	h.hub.BroadcastToBranch(branchID, queueEvent{Type: "queue.called", Entry: resp})

	writeJSON(w, http.StatusOK, resp)
}

// Serve marks a called entry as served.
func (h *QueueHandler) Serve(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid queue entry ID"})
		return
	}

	entry, err := h.store.MarkQueueEntryServed(r.Context(), database.MarkQueueEntryServedParams{
		ID:       entryID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "entry is not in called status"})
			return
		}
		log.Printf("ERROR: mark queue entry served: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
}
