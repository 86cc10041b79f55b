package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/cheche-app/api/internal/auth"
	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/enum"
	"github.com/cheche-app/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Mock store ---

type mockReviewStore struct {
	reviews map[uuid.UUID]database.Review
}

func newMockReviewStore() *mockReviewStore {
	return &mockReviewStore{reviews: make(map[uuid.UUID]database.Review)}
}

func (m *mockReviewStore) addReview(branchID uuid.UUID, status string, rating int32) database.Review {
	rv := database.Review{
		ID:           uuid.New(),
		BranchID:     branchID,
		CustomerName: "Asha M.",
		Rating:       rating,
		Status:       status,
	}
	m.reviews[rv.ID] = rv
	return rv
}

func (m *mockReviewStore) ListReviewsByBranch(_ context.Context, branchID uuid.UUID) ([]database.Review, error) {
	var result []database.Review
	for _, rv := range m.reviews {
		if rv.BranchID == branchID {
			result = append(result, rv)
		}
	}
	return result, nil
}

func (m *mockReviewStore) ListApprovedReviewsByBranch(_ context.Context, branchID uuid.UUID) ([]database.Review, error) {
	var result []database.Review
	for _, rv := range m.reviews {
		if rv.BranchID == branchID && rv.Status == enum.ReviewStatusApproved {
			result = append(result, rv)
		}
	}
	return result, nil
}

func (m *mockReviewStore) CreateReview(_ context.Context, arg database.CreateReviewParams) (database.Review, error) {
	rv := database.Review{
		ID:            uuid.New(),
		BranchID:      arg.BranchID,
		ReservationID: arg.ReservationID,
		CustomerName:  arg.CustomerName,
		Rating:        arg.Rating,
		Comment:       arg.Comment,
		Status:        enum.ReviewStatusPending,
	}
	m.reviews[rv.ID] = rv
	return rv, nil
}

func (m *mockReviewStore) UpdateReviewStatus(_ context.Context, arg database.UpdateReviewStatusParams) (database.Review, error) {
	rv, ok := m.reviews[arg.ID]
	if !ok || rv.BranchID != arg.BranchID {
		return database.Review{}, pgx.ErrNoRows
	}
	rv.Status = arg.Status
	m.reviews[rv.ID] = rv
	return rv, nil
}

func setupReviewRouter(store *mockReviewStore, claims *auth.Claims) *chi.Mux {
	h := handler.NewReviewHandler(store)
	r := chi.NewRouter()
	r.Use(injectClaims(claims))
	r.Route("/branches/{bid}/reviews", h.RegisterRoutes)
	return r
}

// --- List tests ---

func TestListReviews_CustomerSeesApprovedOnly(t *testing.T) {
	branchID := uuid.New()
	store := newMockReviewStore()
	approved := store.addReview(branchID, enum.ReviewStatusApproved, 5)
	store.addReview(branchID, enum.ReviewStatusPending, 1)
	store.addReview(branchID, enum.ReviewStatusRejected, 1)

	router := setupReviewRouter(store, staffClaims(enum.RoleCustomer, uuid.Nil, uuid.Nil))
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reviews", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeUserListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 review, got %d", len(resp))
	}
	if resp[0]["id"] != approved.ID.String() {
		t.Errorf("id: got %v, want %s", resp[0]["id"], approved.ID.String())
	}
}

func TestListReviews_StaffSeesAll(t *testing.T) {
	branchID := uuid.New()
	store := newMockReviewStore()
	store.addReview(branchID, enum.ReviewStatusApproved, 5)
	store.addReview(branchID, enum.ReviewStatusPending, 3)
	store.addReview(branchID, enum.ReviewStatusRejected, 1)

	router := setupReviewRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reviews", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeUserListResponse(t, rr)
	if len(resp) != 3 {
		t.Fatalf("expected 3 reviews, got %d", len(resp))
	}
}

// --- Create tests ---

func TestCreateReview_Valid(t *testing.T) {
	branchID := uuid.New()
	store := newMockReviewStore()
	router := setupReviewRouter(store, staffClaims(enum.RoleCustomer, uuid.Nil, uuid.Nil))

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reviews", map[string]interface{}{
		"customer_name": "Asha M.",
		"rating":        4,
		"comment":       "Quick service",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeUserResponse(t, rr)
	if resp["rating"] != float64(4) {
		t.Errorf("rating: got %v, want 4", resp["rating"])
	}
	// New reviews wait for moderation.
	if resp["status"] != enum.ReviewStatusPending {
		t.Errorf("status: got %v, want %s", resp["status"], enum.ReviewStatusPending)
	}
	if resp["comment"] != "Quick service" {
		t.Errorf("comment: got %v, want Quick service", resp["comment"])
	}
}

func TestCreateReview_RatingOutOfRange(t *testing.T) {
	branchID := uuid.New()
	router := setupReviewRouter(newMockReviewStore(), staffClaims(enum.RoleCustomer, uuid.Nil, uuid.Nil))

	for _, rating := range []int{0, 6, -1} {
		rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reviews", map[string]interface{}{
			"customer_name": "Asha M.",
			"rating":        rating,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("rating %d: status got %d, want %d", rating, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestCreateReview_MissingName(t *testing.T) {
	branchID := uuid.New()
	router := setupReviewRouter(newMockReviewStore(), staffClaims(enum.RoleCustomer, uuid.Nil, uuid.Nil))

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/reviews", map[string]interface{}{
		"rating": 4,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Moderation tests ---

func TestUpdateReviewStatus_Approve(t *testing.T) {
	branchID := uuid.New()
	store := newMockReviewStore()
	rv := store.addReview(branchID, enum.ReviewStatusPending, 4)

	router := setupReviewRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))
	rr := doRequest(t, router, "PUT", "/branches/"+branchID.String()+"/reviews/"+rv.ID.String()+"/status", map[string]string{
		"status": enum.ReviewStatusApproved,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeUserResponse(t, rr)
	if resp["status"] != enum.ReviewStatusApproved {
		t.Errorf("status: got %v, want %s", resp["status"], enum.ReviewStatusApproved)
	}
}

func TestUpdateReviewStatus_InvalidStatus(t *testing.T) {
	branchID := uuid.New()
	store := newMockReviewStore()
	rv := store.addReview(branchID, enum.ReviewStatusPending, 4)

	router := setupReviewRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))
	rr := doRequest(t, router, "PUT", "/branches/"+branchID.String()+"/reviews/"+rv.ID.String()+"/status", map[string]string{
		"status": enum.ReviewStatusPending,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateReviewStatus_NotFound(t *testing.T) {
	branchID := uuid.New()
	router := setupReviewRouter(newMockReviewStore(), staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "PUT", "/branches/"+branchID.String()+"/reviews/"+uuid.New().String()+"/status", map[string]string{
		"status": enum.ReviewStatusApproved,
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
