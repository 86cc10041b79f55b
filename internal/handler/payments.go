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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// PaymentStore defines the database methods needed by payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	GetReservationForBranch(ctx context.Context, arg database.GetReservationForBranchParams) (database.Reservation, error)
	ListPaymentsByReservation(ctx context.Context, reservationID uuid.UUID) ([]database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	SumPaymentsByReservation(ctx context.Context, reservationID uuid.UUID) (pgtype.Numeric, error)
}

// PaymentHandler handles reservation payment endpoints.
type PaymentHandler struct {
	store PaymentStore
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore) *PaymentHandler {
	return &PaymentHandler{store: store}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter:
// /branches/{bid}/reservations/{id}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

// --- Request / Response types ---

type createPaymentRequest struct {
	Amount          string `json:"amount"`
	Method          string `json:"method"`
	ReferenceNumber string `json:"reference_number"`
}

type reservationPaymentResponse struct {
	ID              uuid.UUID `json:"id"`
	ReservationID   uuid.UUID `json:"reservation_id"`
	Amount          string    `json:"amount"`
	Method          string    `json:"method"`
	Status          string    `json:"status"`
	ReferenceNumber *string   `json:"reference_number"`
	CreatedBy       uuid.UUID `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

type paymentListResponse struct {
	Payments  []reservationPaymentResponse `json:"payments"`
	TotalPaid string                       `json:"total_paid"`
}

func toPaymentResponse(p database.Payment) reservationPaymentResponse {
	resp := reservationPaymentResponse{
		ID:            p.ID,
		ReservationID: p.ReservationID,
		Amount:        numericToString(p.Amount),
		Method:        p.Method,
		Status:        p.Status,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
	}
	if p.ReferenceNumber.Valid {
		resp.ReferenceNumber = &p.ReferenceNumber.String
	}
	return resp
}

// --- Helpers ---

func isValidPaymentMethod(method string) bool {
	switch method {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer:
		return true
	}
	return false
}

var errNegativeAmount = errors.New("negative amount")

func parseAmount(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() || d.IsZero() {
		return pgtype.Numeric{}, errNegativeAmount
	}
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// reservationForBranch resolves {bid}/{id} into the reservation, writing the
// error response itself when the pair does not resolve.
func (h *PaymentHandler) reservationForBranch(w http.ResponseWriter, r *http.Request) (database.Reservation, bool) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return database.Reservation{}, false
	}

	reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation ID"})
		return database.Reservation{}, false
	}

	res, err := h.store.GetReservationForBranch(r.Context(), database.GetReservationForBranchParams{
		ID:       reservationID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "reservation not found"})
			return database.Reservation{}, false
		}
		log.Printf("ERROR: get reservation for payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.Reservation{}, false
	}
	return res, true
}

// --- Handlers ---

// List returns a reservation's payments plus the completed total.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	res, ok := h.reservationForBranch(w, r)
	if !ok {
		return
	}

	payments, err := h.store.ListPaymentsByReservation(r.Context(), res.ID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.SumPaymentsByReservation(r.Context(), res.ID)
	if err != nil {
		log.Printf("ERROR: sum payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]reservationPaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}

	writeJSON(w, http.StatusOK, paymentListResponse{
		Payments:  resp,
		TotalPaid: numericToString(total),
	})
}

// Create records a payment against a reservation.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	res, ok := h.reservationForBranch(w, r)
	if !ok {
		return
	}

	if res.Status == enum.ReservationStatusCancelled {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot pay a cancelled reservation"})
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		if errors.Is(err, errNegativeAmount) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be > 0"})
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		}
		return
	}

	if !isValidPaymentMethod(req.Method) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid method"})
		return
	}

	payment, err := h.store.CreatePayment(r.Context(), database.CreatePaymentParams{
		ReservationID:   res.ID,
		Amount:          amount,
		Method:          req.Method,
		Status:          enum.PaymentStatusCompleted,
		ReferenceNumber: textOrNull(req.ReferenceNumber),
		CreatedBy:       claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}
