package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/enum"
	"github.com/cheche-app/api/internal/middleware"
	"github.com/cheche-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	GetDailyReservations(ctx context.Context, arg database.GetDailyReservationsParams) ([]database.GetDailyReservationsRow, error)
	GetServiceBreakdown(ctx context.Context, arg database.GetServiceBreakdownParams) ([]database.GetServiceBreakdownRow, error)
	GetHourlyLoad(ctx context.Context, arg database.GetHourlyLoadParams) ([]database.GetHourlyLoadRow, error)
	GetBranchComparison(ctx context.Context, arg database.GetBranchComparisonParams) ([]database.GetBranchComparisonRow, error)
}

// ReportHandler handles reporting endpoints.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers branch-level report endpoints on the given Chi
// router. Expected to be mounted inside a branch-scoped subrouter:
// /branches/{bid}/reports
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-reservations", h.DailyReservations)
	r.Get("/service-breakdown", h.ServiceBreakdown)
	r.Get("/hourly-load", h.HourlyLoad)
}

// --- Response types ---

type dailyReservationsRow struct {
	Date             string `json:"date"`
	ReservationCount int64  `json:"reservation_count"`
	AttendedCount    int64  `json:"attended_count"`
	CancelledCount   int64  `json:"cancelled_count"`
}

type serviceBreakdownRow struct {
	ServiceID        uuid.UUID `json:"service_id"`
	ServiceName      string    `json:"service_name"`
	ReservationCount int64     `json:"reservation_count"`
}

type hourlyLoadRow struct {
	TimeFrom         string `json:"time_from"`
	ReservationCount int64  `json:"reservation_count"`
}

type branchComparisonRow struct {
	BranchID         uuid.UUID `json:"branch_id"`
	BranchName       string    `json:"branch_name"`
	ReservationCount int64     `json:"reservation_count"`
	AttendedCount    int64     `json:"attended_count"`
}

// --- Helpers ---

// parseDateRange reads start_date / end_date query params (MM-DD-YYYY, the
// reservation wire format). The range defaults to the past 30 days.
func parseDateRange(r *http.Request) (start, end time.Time, ok bool) {
	end = time.Now().UTC().Truncate(24 * time.Hour)
	start = end.AddDate(0, 0, -30)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(service.DateLayout, s, time.UTC)
		if err != nil {
			return start, end, false
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(service.DateLayout, s, time.UTC)
		if err != nil {
			return start, end, false
		}
		end = t
	}
	return start, end, true
}

func branchIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return uuid.Nil, false
	}
	return branchID, true
}

// --- Handlers ---

// DailyReservations handles GET /branches/{bid}/reports/daily-reservations.
func (h *ReportHandler) DailyReservations(w http.ResponseWriter, r *http.Request) {
	branchID, ok := branchIDFromRequest(w, r)
	if !ok {
		return
	}

	start, end, ok := parseDateRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use MM-DD-YYYY"})
		return
	}

	rows, err := h.store.GetDailyReservations(r.Context(), database.GetDailyReservationsParams{
		BranchID:  branchID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		log.Printf("ERROR: daily reservations report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailyReservationsRow, len(rows))
	for i, row := range rows {
		resp[i] = dailyReservationsRow{
			Date:             row.Date,
			ReservationCount: row.ReservationCount,
			AttendedCount:    row.AttendedCount,
			CancelledCount:   row.CancelledCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ServiceBreakdown handles GET /branches/{bid}/reports/service-breakdown.
func (h *ReportHandler) ServiceBreakdown(w http.ResponseWriter, r *http.Request) {
	branchID, ok := branchIDFromRequest(w, r)
	if !ok {
		return
	}

	start, end, ok := parseDateRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use MM-DD-YYYY"})
		return
	}

	rows, err := h.store.GetServiceBreakdown(r.Context(), database.GetServiceBreakdownParams{
		BranchID:  branchID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		log.Printf("ERROR: service breakdown report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]serviceBreakdownRow, len(rows))
	for i, row := range rows {
		resp[i] = serviceBreakdownRow{
			ServiceID:        row.ServiceID,
			ServiceName:      row.ServiceName,
			ReservationCount: row.ReservationCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HourlyLoad handles GET /branches/{bid}/reports/hourly-load.
func (h *ReportHandler) HourlyLoad(w http.ResponseWriter, r *http.Request) {
	branchID, ok := branchIDFromRequest(w, r)
	if !ok {
		return
	}

	start, end, ok := parseDateRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use MM-DD-YYYY"})
		return
	}

	rows, err := h.store.GetHourlyLoad(r.Context(), database.GetHourlyLoadParams{
		BranchID:  branchID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		log.Printf("ERROR: hourly load report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]hourlyLoadRow, len(rows))
	for i, row := range rows {
		resp[i] = hourlyLoadRow{
			TimeFrom:         row.TimeFrom,
			ReservationCount: row.ReservationCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// BranchComparison handles GET /reports/branch-comparison. superadmin picks
// the organization via ?organization_id=; organization managers are locked
// to their own.
func (h *ReportHandler) BranchComparison(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orgID := claims.OrganizationID
	if claims.Role == enum.RoleSuperadmin {
		parsed, err := uuid.Parse(r.URL.Query().Get("organization_id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
			return
		}
		orgID = parsed
	}
	if orgID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization_id is required"})
		return
	}

	start, end, ok := parseDateRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use MM-DD-YYYY"})
		return
	}

	rows, err := h.store.GetBranchComparison(r.Context(), database.GetBranchComparisonParams{
		OrganizationID: orgID,
		StartDate:      start,
		EndDate:        end,
	})
	if err != nil {
		log.Printf("ERROR: branch comparison report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]branchComparisonRow, len(rows))
	for i, row := range rows {
		resp[i] = branchComparisonRow{
			BranchID:         row.BranchID,
			BranchName:       row.BranchName,
			ReservationCount: row.ReservationCount,
			AttendedCount:    row.AttendedCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
