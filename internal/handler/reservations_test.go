package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/enum"
	"github.com/cheche-app/api/internal/handler"
	"github.com/cheche-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// --- Mock service ---

type mockReservationServicer struct {
	availabilityFn func(ctx context.Context, branchID, serviceID uuid.UUID, date string) ([]service.TimeSlot, error)
	createFn       func(ctx context.Context, req service.CreateReservationRequest) (*database.Reservation, error)
	checkInFn      func(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error)
	checkOutFn     func(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error)
	cancelFn       func(ctx context.Context, branchID, reservationID uuid.UUID) error
}

func (m *mockReservationServicer) Availability(ctx context.Context, branchID, serviceID uuid.UUID, date string) ([]service.TimeSlot, error) {
	return m.availabilityFn(ctx, branchID, serviceID, date)
}

func (m *mockReservationServicer) CreateReservation(ctx context.Context, req service.CreateReservationRequest) (*database.Reservation, error) {
	return m.createFn(ctx, req)
}

func (m *mockReservationServicer) CheckIn(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error) {
	return m.checkInFn(ctx, branchID, reservationID)
}

func (m *mockReservationServicer) CheckOut(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error) {
	return m.checkOutFn(ctx, branchID, reservationID)
}

func (m *mockReservationServicer) Cancel(ctx context.Context, branchID, reservationID uuid.UUID) error {
	return m.cancelFn(ctx, branchID, reservationID)
}

type mockReservationSearchStore struct {
	rows   []database.SearchReservationsByBranchRow
	gotArg database.SearchReservationsByBranchParams
}

func (m *mockReservationSearchStore) SearchReservationsByBranch(_ context.Context, arg database.SearchReservationsByBranchParams) ([]database.SearchReservationsByBranchRow, error) {
	m.gotArg = arg
	var result []database.SearchReservationsByBranchRow
	for _, row := range m.rows {
		result = append(result, row)
	}
	return result, nil
}

// mockReservationRecorder captures reservation outcomes.
type mockReservationRecorder struct {
	outcomes []string
}

func (m *mockReservationRecorder) ObserveReservation(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

// setupReservationRouterAs mounts the production route wiring (including
// the role gates) with a token of the given role.
func setupReservationRouterAs(svc *mockReservationServicer, store *mockReservationSearchStore, branchID uuid.UUID, role string, rec handler.ReservationRecorder) *chi.Mux {
	h := handler.NewReservationHandler(svc, store, rec)
	r := chi.NewRouter()
	r.Use(injectClaims(staffClaims(role, uuid.Nil, branchID)))
	r.Route("/branches/{bid}/reservations", h.RegisterRoutes)
	r.Get("/branches/{bid}/availability", h.Availability)
	return r
}

func setupReservationRouter(svc *mockReservationServicer, store *mockReservationSearchStore, branchID uuid.UUID) *chi.Mux {
	return setupReservationRouterAs(svc, store, branchID, enum.RoleBranchManager, nil)
}

func sampleReservation(branchServiceID, durationID uuid.UUID) *database.Reservation {
	return &database.Reservation{
		ID:                 uuid.New(),
		Cnr:                "KJQWRT",
		BranchServiceID:    branchServiceID,
		DurationID:         durationID,
		AppointmentDate:    time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		FirstName:          "Asha",
		LastName:           "Mushi",
		Mobile:             "+255700000010",
		PartySize:          2,
		Status:             enum.ReservationStatusConfirmed,
		AppointmentThrough: enum.AppointmentThroughSelf,
		CreatedAt:          time.Now(),
	}
}

// --- Availability tests ---

func TestAvailability_ReturnsSlots(t *testing.T) {
	branchID := uuid.New()
	serviceID := uuid.New()
	durationID := uuid.New()
	svc := &mockReservationServicer{
		availabilityFn: func(_ context.Context, gotBranch, gotService uuid.UUID, date string) ([]service.TimeSlot, error) {
			if gotBranch != branchID || gotService != serviceID {
				t.Errorf("unexpected IDs: branch %s, service %s", gotBranch, gotService)
			}
			if date != "10-15-2026" {
				t.Errorf("date: got %s, want 10-15-2026", date)
			}
			return []service.TimeSlot{
				{DurationID: durationID, TimeFrom: "09:00", TimeTo: "10:00", IsMorning: true, RemainingSlots: 2},
			}, nil
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/availability?service_id="+serviceID.String()+"&date=10-15-2026", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeUserListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(resp))
	}
	if resp[0]["time_from"] != "09:00" {
		t.Errorf("time_from: got %v, want 09:00", resp[0]["time_from"])
	}
	if resp[0]["remaining_slots"] != float64(2) {
		t.Errorf("remaining_slots: got %v, want 2", resp[0]["remaining_slots"])
	}
}

func TestAvailability_InvalidServiceID(t *testing.T) {
	branchID := uuid.New()
	router := setupReservationRouter(&mockReservationServicer{}, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/availability?service_id=nope&date=10-15-2026", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAvailability_ServiceNotFound(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		availabilityFn: func(context.Context, uuid.UUID, uuid.UUID, string) ([]service.TimeSlot, error) {
			return nil, service.ErrServiceNotFound
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/availability?service_id="+uuid.New().String()+"&date=10-15-2026", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Create tests ---

func TestCreateReservation_Valid(t *testing.T) {
	branchID := uuid.New()
	serviceID := uuid.New()
	durationID := uuid.New()
	var gotReq service.CreateReservationRequest
	svc := &mockReservationServicer{
		createFn: func(_ context.Context, req service.CreateReservationRequest) (*database.Reservation, error) {
			gotReq = req
			return sampleReservation(serviceID, durationID), nil
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", map[string]interface{}{
		"branch_service_id":       serviceID.String(),
		"appointment_date":        "10-15-2026",
		"appointment_duration_id": durationID.String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              2,
		"appointment_through":     enum.AppointmentThroughSelf,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	if gotReq.BranchID != branchID {
		t.Errorf("branch ID passed to service: got %s, want %s", gotReq.BranchID, branchID)
	}
	if gotReq.AppointmentDate != "10-15-2026" {
		t.Errorf("appointment date: got %s, want 10-15-2026", gotReq.AppointmentDate)
	}

	resp := decodeUserResponse(t, rr)
	if resp["cnr"] != "KJQWRT" {
		t.Errorf("cnr: got %v, want KJQWRT", resp["cnr"])
	}
	if resp["appointment_date"] != "10-15-2026" {
		t.Errorf("appointment_date: got %v, want 10-15-2026", resp["appointment_date"])
	}
	if resp["status"] != enum.ReservationStatusConfirmed {
		t.Errorf("status: got %v, want %s", resp["status"], enum.ReservationStatusConfirmed)
	}
}

func TestCreateReservation_ForwardsIdempotencyKey(t *testing.T) {
	branchID := uuid.New()
	var gotKey string
	svc := &mockReservationServicer{
		createFn: func(_ context.Context, req service.CreateReservationRequest) (*database.Reservation, error) {
			gotKey = req.IdempotencyKey
			return sampleReservation(uuid.New(), uuid.New()), nil
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	body, err := json.Marshal(map[string]interface{}{
		"branch_service_id":       uuid.New().String(),
		"appointment_date":        "10-15-2026",
		"appointment_duration_id": uuid.New().String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              1,
		"appointment_through":     enum.AppointmentThroughSelf,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", "/branches/"+branchID.String()+"/reservations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "booking-7f3a")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if gotKey != "booking-7f3a" {
		t.Errorf("idempotency key: got %q, want booking-7f3a", gotKey)
	}
}

func TestCreateReservation_SlotFull(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		createFn: func(context.Context, service.CreateReservationRequest) (*database.Reservation, error) {
			return nil, service.ErrSlotFull
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", map[string]interface{}{
		"branch_service_id":       uuid.New().String(),
		"appointment_date":        "10-15-2026",
		"appointment_duration_id": uuid.New().String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              1,
		"appointment_through":     enum.AppointmentThroughSelf,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCreateReservation_ValidationError(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		createFn: func(context.Context, service.CreateReservationRequest) (*database.Reservation, error) {
			return nil, service.ErrDateInPast
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", map[string]interface{}{
		"branch_service_id":       uuid.New().String(),
		"appointment_date":        "01-01-2020",
		"appointment_duration_id": uuid.New().String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              1,
		"appointment_through":     enum.AppointmentThroughSelf,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateReservation_ServiceNotFound(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		createFn: func(context.Context, service.CreateReservationRequest) (*database.Reservation, error) {
			return nil, service.ErrServiceNotFound
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", map[string]interface{}{
		"branch_service_id":       uuid.New().String(),
		"appointment_date":        "10-15-2026",
		"appointment_duration_id": uuid.New().String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              1,
		"appointment_through":     enum.AppointmentThroughSelf,
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Search tests ---

func TestSearchReservations_PassesFilters(t *testing.T) {
	branchID := uuid.New()
	store := &mockReservationSearchStore{
		rows: []database.SearchReservationsByBranchRow{
			{
				ID:                 uuid.New(),
				Cnr:                "KJQWRT",
				FirstName:          "Asha",
				LastName:           "Mushi",
				Mobile:             "+255700000010",
				AppointmentDate:    time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
				Status:             enum.ReservationStatusConfirmed,
				AppointmentThrough: enum.AppointmentThroughSelf,
				TimeFrom:           "09:00",
				ServiceName:        "Passport Application",
			},
		},
	}
	router := setupReservationRouter(&mockReservationServicer{}, store, branchID)

	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reservations?search=KJQWRT&date=10-15-2026", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	if store.gotArg.Search != "KJQWRT" {
		t.Errorf("search param: got %q, want KJQWRT", store.gotArg.Search)
	}
	if !store.gotArg.AppointmentDate.Valid {
		t.Error("expected date filter to be set")
	}

	resp := decodeUserListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 row, got %d", len(resp))
	}
	if resp[0]["service_name"] != "Passport Application" {
		t.Errorf("service_name: got %v, want Passport Application", resp[0]["service_name"])
	}
}

func TestSearchReservations_BadDate(t *testing.T) {
	branchID := uuid.New()
	router := setupReservationRouter(&mockReservationServicer{}, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reservations?date=2026-10-15", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Transition tests ---

func TestCheckIn_Valid(t *testing.T) {
	branchID := uuid.New()
	res := sampleReservation(uuid.New(), uuid.New())
	res.Status = enum.ReservationStatusCheckedIn
	svc := &mockReservationServicer{
		checkInFn: func(_ context.Context, gotBranch, gotRes uuid.UUID) (*database.Reservation, error) {
			if gotBranch != branchID || gotRes != res.ID {
				t.Errorf("unexpected IDs: branch %s, reservation %s", gotBranch, gotRes)
			}
			return res, nil
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations/"+res.ID.String()+"/check-in", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeUserResponse(t, rr)
	if resp["status"] != enum.ReservationStatusCheckedIn {
		t.Errorf("status: got %v, want %s", resp["status"], enum.ReservationStatusCheckedIn)
	}
}

func TestCheckIn_WrongStatus(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		checkInFn: func(context.Context, uuid.UUID, uuid.UUID) (*database.Reservation, error) {
			return nil, service.ErrInvalidTransition
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations/"+uuid.New().String()+"/check-in", nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCheckOut_NotFound(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		checkOutFn: func(context.Context, uuid.UUID, uuid.UUID) (*database.Reservation, error) {
			return nil, service.ErrReservationNotFound
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations/"+uuid.New().String()+"/check-out", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCancelReservation_Valid(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		cancelFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			return nil
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "DELETE", "/branches/"+branchID.String()+"/reservations/"+uuid.New().String(), nil)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestCancelReservation_AlreadyCheckedOut(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		cancelFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			return service.ErrInvalidTransition
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "DELETE", "/branches/"+branchID.String()+"/reservations/"+uuid.New().String(), nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// --- Role gating tests ---

func TestSearchReservations_CustomerForbidden(t *testing.T) {
	branchID := uuid.New()
	store := &mockReservationSearchStore{}
	router := setupReservationRouterAs(&mockReservationServicer{}, store, branchID, enum.RoleCustomer, nil)

	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reservations", nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if store.gotArg.BranchID != uuid.Nil {
		t.Error("store should not be queried for a forbidden request")
	}
}

func TestCancelReservation_CustomerForbidden(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		cancelFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			t.Fatal("cancel should not be called")
			return nil
		},
	}
	router := setupReservationRouterAs(svc, &mockReservationSearchStore{}, branchID, enum.RoleCustomer, nil)

	rr := doRequest(t, router, "DELETE", "/branches/"+branchID.String()+"/reservations/"+uuid.New().String(), nil)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCheckIn_CustomerForbidden(t *testing.T) {
	branchID := uuid.New()
	router := setupReservationRouterAs(&mockReservationServicer{}, &mockReservationSearchStore{}, branchID, enum.RoleCustomer, nil)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations/"+uuid.New().String()+"/check-in", nil)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCreateReservation_CustomerAllowed(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		createFn: func(_ context.Context, req service.CreateReservationRequest) (*database.Reservation, error) {
			return sampleReservation(uuid.New(), uuid.New()), nil
		},
	}
	router := setupReservationRouterAs(svc, &mockReservationSearchStore{}, branchID, enum.RoleCustomer, nil)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", map[string]interface{}{
		"branch_service_id":       uuid.New().String(),
		"appointment_date":        "10-15-2026",
		"appointment_duration_id": uuid.New().String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              1,
		"appointment_through":     enum.AppointmentThroughSelf,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

// --- Duplicate submission ---

func TestCreateReservation_DuplicateInFlight(t *testing.T) {
	branchID := uuid.New()
	svc := &mockReservationServicer{
		createFn: func(context.Context, service.CreateReservationRequest) (*database.Reservation, error) {
			return nil, service.ErrDuplicateInFlight
		},
	}
	router := setupReservationRouter(svc, &mockReservationSearchStore{}, branchID)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", map[string]interface{}{
		"branch_service_id":       uuid.New().String(),
		"appointment_date":        "10-15-2026",
		"appointment_duration_id": uuid.New().String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              1,
		"appointment_through":     enum.AppointmentThroughSelf,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// --- Metrics recording ---

func TestCreateReservation_RecordsOutcomes(t *testing.T) {
	branchID := uuid.New()
	rec := &mockReservationRecorder{}
	calls := 0
	svc := &mockReservationServicer{
		createFn: func(context.Context, service.CreateReservationRequest) (*database.Reservation, error) {
			calls++
			if calls == 1 {
				return sampleReservation(uuid.New(), uuid.New()), nil
			}
			return nil, service.ErrSlotFull
		},
	}
	router := setupReservationRouterAs(svc, &mockReservationSearchStore{}, branchID, enum.RoleCustomer, rec)

	body := map[string]interface{}{
		"branch_service_id":       uuid.New().String(),
		"appointment_date":        "10-15-2026",
		"appointment_duration_id": uuid.New().String(),
		"first_name":              "Asha",
		"last_name":               "Mushi",
		"mobile":                  "+255700000010",
		"party_size":              1,
		"appointment_through":     enum.AppointmentThroughSelf,
	}
	doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", body)
	doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reservations", body)

	want := []string{"created", "slot_full"}
	if len(rec.outcomes) != len(want) {
		t.Fatalf("outcomes: got %v, want %v", rec.outcomes, want)
	}
	for i := range want {
		if rec.outcomes[i] != want[i] {
			t.Errorf("outcome %d: got %s, want %s", i, rec.outcomes[i], want[i])
		}
	}
}
