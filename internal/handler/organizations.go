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
	"github.com/jackc/pgx/v5/pgtype"
)

// OrganizationStore defines the database methods needed by organization handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrganizationStore interface {
	ListOrganizations(ctx context.Context) ([]database.Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (database.Organization, error)
	CreateOrganization(ctx context.Context, arg database.CreateOrganizationParams) (database.Organization, error)
	UpdateOrganization(ctx context.Context, arg database.UpdateOrganizationParams) (database.Organization, error)
	SoftDeleteOrganization(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// OrganizationHandler handles organization CRUD endpoints.
type OrganizationHandler struct {
	store OrganizationStore
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(store OrganizationStore) *OrganizationHandler {
	return &OrganizationHandler{store: store}
}

// --- Request / Response types ---

type organizationRequest struct {
	Name        string `json:"name"`
	Logo        string `json:"logo"`
	Description string `json:"description"`
}

type organizationResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Logo        *string   `json:"logo"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toOrganizationResponse(o database.Organization) organizationResponse {
	resp := organizationResponse{
		ID:        o.ID,
		Name:      o.Name,
		CreatedAt: o.CreatedAt,
	}
	if o.Logo.Valid {
		resp.Logo = &o.Logo.String
	}
	if o.Description.Valid {
		resp.Description = &o.Description.String
	}
	return resp
}

// --- Handlers ---

// List returns all active organizations. Any authenticated user may call
// this; it feeds the booking flow's organization picker.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrganizations(r.Context())
	if err != nil {
		log.Printf("ERROR: list organizations: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]organizationResponse, len(orgs))
	for i, o := range orgs {
		resp[i] = toOrganizationResponse(o)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single organization by ID.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
		return
	}

	org, err := h.store.GetOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "organization not found"})
			return
		}
		log.Printf("ERROR: get organization: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrganizationResponse(org))
}

// Create adds a new organization.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	org, err := h.store.CreateOrganization(r.Context(), database.CreateOrganizationParams{
		Name:        req.Name,
		Logo:        textOrNull(req.Logo),
		Description: textOrNull(req.Description),
	})
	if err != nil {
		log.Printf("ERROR: create organization: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toOrganizationResponse(org))
}

// Update modifies an existing organization.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
		return
	}

	var req organizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	org, err := h.store.UpdateOrganization(r.Context(), database.UpdateOrganizationParams{
		Name:        req.Name,
		Logo:        textOrNull(req.Logo),
		Description: textOrNull(req.Description),
		ID:          orgID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "organization not found"})
			return
		}
		log.Printf("ERROR: update organization: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrganizationResponse(org))
}

// Delete soft-deletes an organization by setting is_active=false.
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization ID"})
		return
	}

	_, err = h.store.SoftDeleteOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "organization not found"})
			return
		}
		log.Printf("ERROR: delete organization: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// textOrNull converts an optional request string to a nullable column value.
func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
