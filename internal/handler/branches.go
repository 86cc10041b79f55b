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

// BranchStore defines the database methods needed by branch handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type BranchStore interface {
	ListBranchesByOrganization(ctx context.Context, organizationID uuid.UUID) ([]database.Branch, error)
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
	CreateBranch(ctx context.Context, arg database.CreateBranchParams) (database.Branch, error)
	UpdateBranch(ctx context.Context, arg database.UpdateBranchParams) (database.Branch, error)
	SoftDeleteBranch(ctx context.Context, arg database.SoftDeleteBranchParams) (uuid.UUID, error)
}

// BranchHandler handles branch CRUD endpoints.
type BranchHandler struct {
	store BranchStore
}

// NewBranchHandler creates a new BranchHandler.
func NewBranchHandler(store BranchStore) *BranchHandler {
	return &BranchHandler{store: store}
}

// --- Request / Response types ---

type branchRequest struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	ServicesPerHour int32  `json:"services_per_hour"`
	TimeSpecific    bool   `json:"time_specific"`
}

type branchResponse struct {
	ID              uuid.UUID `json:"id"`
	OrganizationID  uuid.UUID `json:"organization_id"`
	Name            string    `json:"name"`
	Address         *string   `json:"address"`
	ServicesPerHour int32     `json:"services_per_hour"`
	TimeSpecific    bool      `json:"time_specific"`
	CreatedAt       time.Time `json:"created_at"`
}

func toBranchResponse(b database.Branch) branchResponse {
	resp := branchResponse{
		ID:              b.ID,
		OrganizationID:  b.OrganizationID,
		Name:            b.Name,
		ServicesPerHour: b.ServicesPerHour,
		TimeSpecific:    b.TimeSpecific,
		CreatedAt:       b.CreatedAt,
	}
	if b.Address.Valid {
		resp.Address = &b.Address.String
	}
	return resp
}

// --- Handlers ---

// List returns all active branches of the given organization.
func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
		return
	}

	branches, err := h.store.ListBranchesByOrganization(r.Context(), orgID)
	if err != nil {
		log.Printf("ERROR: list branches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]branchResponse, len(branches))
	for i, b := range branches {
		resp[i] = toBranchResponse(b)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single branch by ID.
func (h *BranchHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	branch, err := h.store.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Printf("ERROR: get branch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toBranchResponse(branch))
}

// Create adds a new branch to the given organization.
func (h *BranchHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
		return
	}

	var req branchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.ServicesPerHour <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "services_per_hour must be > 0"})
		return
	}

	branch, err := h.store.CreateBranch(r.Context(), database.CreateBranchParams{
		OrganizationID:  orgID,
		Name:            req.Name,
		Address:         textOrNull(req.Address),
		ServicesPerHour: req.ServicesPerHour,
		TimeSpecific:    req.TimeSpecific,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
			return
		}
		log.Printf("ERROR: create branch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toBranchResponse(branch))
}

// Update modifies an existing branch of the given organization.
func (h *BranchHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
		return
	}

	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req branchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.ServicesPerHour <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "services_per_hour must be > 0"})
		return
	}

	branch, err := h.store.UpdateBranch(r.Context(), database.UpdateBranchParams{
		Name:            req.Name,
		Address:         textOrNull(req.Address),
		ServicesPerHour: req.ServicesPerHour,
		TimeSpecific:    req.TimeSpecific,
		ID:              branchID,
		OrganizationID:  orgID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Printf("ERROR: update branch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toBranchResponse(branch))
}

// Delete soft-deletes a branch by setting is_active=false.
func (h *BranchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
		return
	}

	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	_, err = h.store.SoftDeleteBranch(r.Context(), database.SoftDeleteBranchParams{
		ID:             branchID,
		OrganizationID: orgID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Printf("ERROR: delete branch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
