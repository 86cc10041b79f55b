package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cheche-app/api/internal/auth"
	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/enum"
	"github.com/cheche-app/api/internal/handler"
	"github.com/cheche-app/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- Mock store ---

type mockUserStore struct {
	users map[uuid.UUID]database.User // keyed by user ID
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockUserStore) ListUsersByBranch(_ context.Context, branchID uuid.UUID) ([]database.User, error) {
	var result []database.User
	for _, u := range m.users {
		if u.BranchID.Valid && u.BranchID.UUID == branchID && u.IsActive {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	// Simulates the unique constraint on email.
	for _, existing := range m.users {
		if existing.Email == arg.Email {
			return database.User{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	u := database.User{
		ID:             uuid.New(),
		OrganizationID: arg.OrganizationID,
		BranchID:       arg.BranchID,
		Firstname:      arg.Firstname,
		Lastname:       arg.Lastname,
		Email:          arg.Email,
		Mobile:         arg.Mobile,
		HashedPassword: arg.HashedPassword,
		Role:           arg.Role,
		IsActive:       arg.IsActive,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, arg database.UpdateUserParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok || !u.BranchID.Valid || u.BranchID != arg.BranchID || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	for _, existing := range m.users {
		if existing.Email == arg.Email && existing.ID != arg.ID {
			return database.User{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	u.Firstname = arg.Firstname
	u.Lastname = arg.Lastname
	u.Email = arg.Email
	u.Mobile = arg.Mobile
	u.Role = arg.Role
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) SoftDeleteUser(_ context.Context, arg database.SoftDeleteUserParams) (uuid.UUID, error) {
	u, ok := m.users[arg.ID]
	if !ok || !u.BranchID.Valid || u.BranchID != arg.BranchID || !u.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	u.IsActive = false
	m.users[u.ID] = u
	return u.ID, nil
}

// --- Shared helpers ---

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// injectClaims stands in for the bearer middleware so handler tests can run
// without minting tokens.
func injectClaims(claims *auth.Claims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
		})
	}
}

func staffClaims(role string, organizationID, branchID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		UserID:         uuid.New(),
		OrganizationID: organizationID,
		BranchID:       branchID,
		Role:           role,
	}
}

func setupUserRouter(store *mockUserStore, claims *auth.Claims) *chi.Mux {
	h := handler.NewUserHandler(store)
	r := chi.NewRouter()
	r.Use(injectClaims(claims))
	r.Route("/branches/{bid}/users", h.RegisterRoutes)
	return r
}

func decodeUserResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeUserListResponse(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- List tests ---

func TestListUsers_Empty(t *testing.T) {
	branchID := uuid.New()
	store := newMockUserStore()
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/users", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeUserListResponse(t, rr)
	if len(resp) != 0 {
		t.Errorf("expected empty list, got %d items", len(resp))
	}
}

func TestListUsers_ReturnsBranchUsers(t *testing.T) {
	branchID := uuid.New()
	otherBranchID := uuid.New()
	store := newMockUserStore()

	id1, id2 := uuid.New(), uuid.New()
	store.users[id1] = database.User{
		ID: id1, BranchID: uuid.NullUUID{UUID: branchID, Valid: true},
		Firstname: "Asha", Lastname: "Mushi", Email: "asha@test.com",
		Role: enum.RoleFieldAgent, IsActive: true,
	}
	store.users[id2] = database.User{
		ID: id2, BranchID: uuid.NullUUID{UUID: otherBranchID, Valid: true},
		Firstname: "Juma", Lastname: "Kessy", Email: "juma@test.com",
		Role: enum.RoleFieldAgent, IsActive: true,
	}

	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/users", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeUserListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 user, got %d", len(resp))
	}
	if resp[0]["firstname"] != "Asha" {
		t.Errorf("firstname: got %v, want Asha", resp[0]["firstname"])
	}
}

func TestListUsers_InvalidBranchID(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), uuid.New()))

	rr := doRequest(t, router, "GET", "/branches/not-a-uuid/users", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Create tests ---

func TestCreateUser_Valid(t *testing.T) {
	branchID := uuid.New()
	orgID := uuid.New()
	store := newMockUserStore()
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, orgID, branchID))

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/users", map[string]interface{}{
		"firstname": "Neema",
		"lastname":  "Lema",
		"email":     "neema@test.com",
		"mobile":    "+255700000001",
		"password":  "super-secret",
		"role":      enum.RoleFieldAgent,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeUserResponse(t, rr)
	if resp["email"] != "neema@test.com" {
		t.Errorf("email: got %v, want neema@test.com", resp["email"])
	}
	if resp["role"] != enum.RoleFieldAgent {
		t.Errorf("role: got %v, want %s", resp["role"], enum.RoleFieldAgent)
	}
	if resp["branch_id"] != branchID.String() {
		t.Errorf("branch_id: got %v, want %s", resp["branch_id"], branchID.String())
	}
	// The password must never come back.
	if _, ok := resp["hashed_password"]; ok {
		t.Error("response leaks hashed_password")
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	branchID := uuid.New()
	store := newMockUserStore()
	id := uuid.New()
	store.users[id] = database.User{
		ID: id, BranchID: uuid.NullUUID{UUID: branchID, Valid: true},
		Email: "taken@test.com", Role: enum.RoleFieldAgent, IsActive: true,
	}
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/users", map[string]interface{}{
		"firstname": "Neema",
		"lastname":  "Lema",
		"email":     "taken@test.com",
		"mobile":    "+255700000001",
		"password":  "super-secret",
		"role":      enum.RoleFieldAgent,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestCreateUser_ShortPassword(t *testing.T) {
	branchID := uuid.New()
	store := newMockUserStore()
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/users", map[string]interface{}{
		"firstname": "Neema",
		"lastname":  "Lema",
		"email":     "neema@test.com",
		"mobile":    "+255700000001",
		"password":  "short",
		"role":      enum.RoleFieldAgent,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateUser_PrivilegedRoleRejected(t *testing.T) {
	branchID := uuid.New()
	store := newMockUserStore()
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/users", map[string]interface{}{
		"firstname": "Evil",
		"lastname":  "Admin",
		"email":     "evil@test.com",
		"mobile":    "+255700000009",
		"password":  "super-secret",
		"role":      enum.RoleSuperadmin,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}

	resp := decodeUserResponse(t, rr)
	if resp["error"] != "invalid role" {
		t.Errorf("error: got %v, want 'invalid role'", resp["error"])
	}
}

// --- Update tests ---

func TestUpdateUser_Valid(t *testing.T) {
	branchID := uuid.New()
	store := newMockUserStore()
	userID := uuid.New()
	store.users[userID] = database.User{
		ID: userID, BranchID: uuid.NullUUID{UUID: branchID, Valid: true},
		Firstname: "Old", Lastname: "Name", Email: "old@test.com",
		Mobile: "+255700000002", Role: enum.RoleFieldAgent, IsActive: true,
	}
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "PUT", "/branches/"+branchID.String()+"/users/"+userID.String(), map[string]interface{}{
		"firstname": "New",
		"lastname":  "Name",
		"email":     "new@test.com",
		"mobile":    "+255700000002",
		"role":      enum.RoleRestaurantOfficer,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeUserResponse(t, rr)
	if resp["firstname"] != "New" {
		t.Errorf("firstname: got %v, want New", resp["firstname"])
	}
	if resp["role"] != enum.RoleRestaurantOfficer {
		t.Errorf("role: got %v, want %s", resp["role"], enum.RoleRestaurantOfficer)
	}
}

func TestUpdateUser_WrongBranch(t *testing.T) {
	branchID := uuid.New()
	otherBranchID := uuid.New()
	store := newMockUserStore()
	userID := uuid.New()
	store.users[userID] = database.User{
		ID: userID, BranchID: uuid.NullUUID{UUID: branchID, Valid: true},
		Firstname: "Asha", Lastname: "Mushi", Email: "asha@test.com",
		Mobile: "+255700000003", Role: enum.RoleFieldAgent, IsActive: true,
	}
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), otherBranchID))

	rr := doRequest(t, router, "PUT", "/branches/"+otherBranchID.String()+"/users/"+userID.String(), map[string]interface{}{
		"firstname": "Hijacked",
		"lastname":  "Account",
		"email":     "asha@test.com",
		"mobile":    "+255700000003",
		"role":      enum.RoleFieldAgent,
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Delete tests ---

func TestDeleteUser_Valid(t *testing.T) {
	branchID := uuid.New()
	store := newMockUserStore()
	userID := uuid.New()
	store.users[userID] = database.User{
		ID: userID, BranchID: uuid.NullUUID{UUID: branchID, Valid: true},
		Email: "gone@test.com", Role: enum.RoleFieldAgent, IsActive: true,
	}
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "DELETE", "/branches/"+branchID.String()+"/users/"+userID.String(), nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}

	if store.users[userID].IsActive {
		t.Error("expected user to be soft-deleted (is_active=false)")
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	branchID := uuid.New()
	store := newMockUserStore()
	router := setupUserRouter(store, staffClaims(enum.RoleBranchManager, uuid.New(), branchID))

	rr := doRequest(t, router, "DELETE", "/branches/"+branchID.String()+"/users/"+uuid.New().String(), nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
