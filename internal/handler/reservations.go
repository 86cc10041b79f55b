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
	"github.com/cheche-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ReservationServicer defines the service methods needed by reservation
// handlers. Satisfied by *service.ReservationService; narrow interface for
// testability.
type ReservationServicer interface {
	Availability(ctx context.Context, branchID, serviceID uuid.UUID, date string) ([]service.TimeSlot, error)
	CreateReservation(ctx context.Context, req service.CreateReservationRequest) (*database.Reservation, error)
	CheckIn(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error)
	CheckOut(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error)
	Cancel(ctx context.Context, branchID, reservationID uuid.UUID) error
}

// ReservationSearchStore defines the database methods needed by the staff
// reservation list. Satisfied by *database.Queries.
type ReservationSearchStore interface {
	SearchReservationsByBranch(ctx context.Context, arg database.SearchReservationsByBranchParams) ([]database.SearchReservationsByBranchRow, error)
}

// ReservationRecorder counts reservation submissions by outcome. Satisfied
// by *metrics.HTTPMetrics; nil disables recording.
type ReservationRecorder interface {
	ObserveReservation(outcome string)
}

// ReservationHandler handles availability and reservation endpoints.
type ReservationHandler struct {
	svc      ReservationServicer
	store    ReservationSearchStore
	recorder ReservationRecorder
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(svc ReservationServicer, store ReservationSearchStore, recorder ReservationRecorder) *ReservationHandler {
	return &ReservationHandler{svc: svc, store: store, recorder: recorder}
}

// RegisterRoutes registers reservation endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter:
// /branches/{bid}/reservations. Create is open to any authenticated user
// (the booking flow); the list, cancel and transition endpoints are staff
// only.
func (h *ReservationHandler) RegisterRoutes(r chi.Router) {
	staff := middleware.RequireRole(
		enum.RoleFieldAgent, enum.RoleRestaurantOfficer,
		enum.RoleAdministrator, enum.RoleBranchManager,
	)
	r.With(staff).Get("/", h.Search)
	r.Post("/", h.Create)
	r.With(staff).Delete("/{id}", h.Cancel)
	r.With(middleware.RequireRole(enum.RoleFieldAgent, enum.RoleBranchManager)).
		Post("/{id}/check-in", h.CheckIn)
	r.With(middleware.RequireRole(enum.RoleRestaurantOfficer, enum.RoleBranchManager)).
		Post("/{id}/check-out", h.CheckOut)
}

func (h *ReservationHandler) observe(outcome string) {
	if h.recorder != nil {
		h.recorder.ObserveReservation(outcome)
	}
}

// --- Request / Response types ---

type createReservationRequest struct {
	BranchServiceID       string `json:"branch_service_id"`
	AppointmentDate       string `json:"appointment_date"`
	AppointmentDurationID string `json:"appointment_duration_id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	Mobile                string `json:"mobile"`
	PartySize             int32  `json:"party_size"`
	AppointmentThrough    string `json:"appointment_through"`
}

type reservationResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Cnr                string     `json:"cnr"`
	BranchServiceID    uuid.UUID  `json:"branch_service_id"`
	DurationID         uuid.UUID  `json:"duration_id"`
	AppointmentDate    string     `json:"appointment_date"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Mobile             string     `json:"mobile"`
	PartySize          int32      `json:"party_size"`
	Status             string     `json:"status"`
	AppointmentThrough string     `json:"appointment_through"`
	CheckedInAt        *time.Time `json:"checked_in_at"`
	CheckedOutAt       *time.Time `json:"checked_out_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

type reservationListItem struct {
	ID                 uuid.UUID `json:"id"`
	Cnr                string    `json:"cnr"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	Mobile             string    `json:"mobile"`
	AppointmentDate    string    `json:"appointment_date"`
	Status             string    `json:"status"`
	AppointmentThrough string    `json:"appointment_through"`
	TimeFrom           string    `json:"time_from"`
	ServiceName        string    `json:"service_name"`
}

func toReservationResponse(res *database.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:                 res.ID,
		Cnr:                res.Cnr,
		BranchServiceID:    res.BranchServiceID,
		DurationID:         res.DurationID,
		AppointmentDate:    res.AppointmentDate.Format(service.DateLayout),
		FirstName:          res.FirstName,
		LastName:           res.LastName,
		Mobile:             res.Mobile,
		PartySize:          res.PartySize,
		Status:             res.Status,
		AppointmentThrough: res.AppointmentThrough,
		CreatedAt:          res.CreatedAt,
	}
	if res.CheckedInAt.Valid {
		resp.CheckedInAt = &res.CheckedInAt.Time
	}
	if res.CheckedOutAt.Valid {
		resp.CheckedOutAt = &res.CheckedOutAt.Time
	}
	return resp
}

// --- Handlers ---

// Availability handles GET /branches/{bid}/availability?service_id=&date=.
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	serviceID, err := uuid.Parse(r.URL.Query().Get("service_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service_id"})
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required"})
		return
	}

	slots, err := h.svc.Availability(r.Context(), branchID, serviceID, date)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDate):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrServiceNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: availability: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, slots)
}

// Create handles POST /branches/{bid}/reservations. An optional
// Idempotency-Key header makes retried submissions return the original
// reservation instead of booking twice.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.svc.CreateReservation(r.Context(), service.CreateReservationRequest{
		BranchID:           branchID,
		BranchServiceID:    req.BranchServiceID,
		DurationID:         req.AppointmentDurationID,
		AppointmentDate:    req.AppointmentDate,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Mobile:             req.Mobile,
		PartySize:          req.PartySize,
		AppointmentThrough: req.AppointmentThrough,
		CreatedBy:          claims.UserID,
		IdempotencyKey:     r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		switch {
		case isReservationValidationError(err):
			h.observe("invalid")
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrServiceNotFound), errors.Is(err, service.ErrDurationNotFound):
			h.observe("not_found")
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrSlotFull):
			h.observe("slot_full")
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrDuplicateInFlight):
			h.observe("duplicate")
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			h.observe("error")
			log.Printf("ERROR: create reservation: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.observe("created")
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

// Search handles GET /branches/{bid}/reservations?search=&date=.
func (h *ReservationHandler) Search(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	params := database.SearchReservationsByBranchParams{
		BranchID: branchID,
		Search:   r.URL.Query().Get("search"),
	}

	if s := r.URL.Query().Get("date"); s != "" {
		day, err := time.ParseInLocation(service.DateLayout, s, time.UTC)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use MM-DD-YYYY"})
			return
		}
		params.AppointmentDate = pgtype.Date{Time: day, Valid: true}
	}

	rows, err := h.store.SearchReservationsByBranch(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: search reservations: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]reservationListItem, len(rows))
	for i, row := range rows {
		resp[i] = reservationListItem{
			ID:                 row.ID,
			Cnr:                row.Cnr,
			FirstName:          row.FirstName,
			LastName:           row.LastName,
			Mobile:             row.Mobile,
			AppointmentDate:    row.AppointmentDate.Format(service.DateLayout),
			Status:             row.Status,
			AppointmentThrough: row.AppointmentThrough,
			TimeFrom:           row.TimeFrom,
			ServiceName:        row.ServiceName,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// CheckIn handles POST /branches/{bid}/reservations/{id}/check-in.
func (h *ReservationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.svc.CheckIn)
}

// CheckOut handles POST /branches/{bid}/reservations/{id}/check-out.
func (h *ReservationHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.svc.CheckOut)
}

// Cancel handles DELETE /branches/{bid}/reservations/{id}.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation ID"})
		return
	}

	if err := h.svc.Cancel(r.Context(), branchID, reservationID); err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: cancel reservation: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *ReservationHandler) applyTransition(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID, uuid.UUID) (*database.Reservation, error)) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation ID"})
		return
	}

	res, err := apply(r.Context(), branchID, reservationID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: reservation transition: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

// isReservationValidationError checks if the error is a known validation
// error from the service layer that should result in 400 Bad Request.
func isReservationValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidDate) ||
		errors.Is(err, service.ErrDateInPast) ||
		errors.Is(err, service.ErrInvalidPartySize) ||
		errors.Is(err, service.ErrInvalidServiceID) ||
		errors.Is(err, service.ErrInvalidDurationID) ||
		errors.Is(err, service.ErrMissingName) ||
		errors.Is(err, service.ErrMissingMobile) ||
		errors.Is(err, service.ErrInvalidThrough)
}
