package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/enum"
	"github.com/cheche-app/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReviewStore defines the database methods needed by review handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReviewStore interface {
	ListReviewsByBranch(ctx context.Context, branchID uuid.UUID) ([]database.Review, error)
	ListApprovedReviewsByBranch(ctx context.Context, branchID uuid.UUID) ([]database.Review, error)
	CreateReview(ctx context.Context, arg database.CreateReviewParams) (database.Review, error)
	UpdateReviewStatus(ctx context.Context, arg database.UpdateReviewStatusParams) (database.Review, error)
}

// ReviewHandler handles branch review endpoints.
type ReviewHandler struct {
	store ReviewStore
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(store ReviewStore) *ReviewHandler {
	return &ReviewHandler{store: store}
}

// RegisterRoutes registers review endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/reviews
func (h *ReviewHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createReviewRequest struct {
	ReservationID string `json:"reservation_id"`
	CustomerName  string `json:"customer_name"`
	Rating        int32  `json:"rating"`
	Comment       string `json:"comment"`
}

type updateReviewStatusRequest struct {
	Status string `json:"status"`
}

type reviewResponse struct {
	ID            uuid.UUID `json:"id"`
	BranchID      uuid.UUID `json:"branch_id"`
	ReservationID *string   `json:"reservation_id"`
	CustomerName  string    `json:"customer_name"`
	Rating        int32     `json:"rating"`
	Comment       *string   `json:"comment"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toReviewResponse(rv database.Review) reviewResponse {
	resp := reviewResponse{
		ID:           rv.ID,
		BranchID:     rv.BranchID,
		CustomerName: rv.CustomerName,
		Rating:       rv.Rating,
		Status:       rv.Status,
		CreatedAt:    rv.CreatedAt,
	}
	if rv.ReservationID.Valid {
		s := rv.ReservationID.UUID.String()
		resp.ReservationID = &s
	}
	if rv.Comment.Valid {
		resp.Comment = &rv.Comment.String
	}
	return resp
}

// --- Handlers ---

// List returns a branch's reviews. Customers only see approved reviews;
// staff see everything including pending moderation.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var reviews []database.Review
	if claims.Role == enum.RoleCustomer {
		reviews, err = h.store.ListApprovedReviewsByBranch(r.Context(), branchID)
	} else {
		reviews, err = h.store.ListReviewsByBranch(r.Context(), branchID)
	}
	if err != nil {
		log.Printf("ERROR: list reviews: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]reviewResponse, len(reviews))
	for i, rv := range reviews {
		resp[i] = toReviewResponse(rv)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create submits a review for moderation.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.CustomerName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_name is required"})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rating must be between 1 and 5"})
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

	review, err := h.store.CreateReview(r.Context(), database.CreateReviewParams{
		BranchID:      branchID,
		ReservationID: reservationID,
		CustomerName:  req.CustomerName,
		Rating:        req.Rating,
		Comment:       textOrNull(req.Comment),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation_id"})
			return
		}
		log.Printf("ERROR: create review: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toReviewResponse(review))
}

// UpdateStatus moderates a review (approve/reject).
func (h *ReviewHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	reviewID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid review ID"})
		return
	}

	var req updateReviewStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status != enum.ReviewStatusApproved && req.Status != enum.ReviewStatusRejected {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	review, err := h.store.UpdateReviewStatus(r.Context(), database.UpdateReviewStatusParams{
		Status:   req.Status,
		ID:       reviewID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "review not found"})
			return
		}
		log.Printf("ERROR: update review status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toReviewResponse(review))
}
