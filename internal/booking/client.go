package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// dateLayout matches the backend's appointment date wire format.
const dateLayout = "01-02-2006"

// TokenSource supplies the bearer token attached to each request. The
// credential is request-scoped: nothing in this package caches it beyond
// what the source itself decides to cache.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns the same token for every request.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// Session is a TokenSource that logs in with email and password and keeps
// the access token fresh via the refresh endpoint. Access tokens are valid
// for 15 minutes; the session renews one minute early.
type Session struct {
	BaseURL  string
	Email    string
	Password string
	HTTP     *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func (s *Session) client() *http.Client {
	if s.HTTP != nil {
		return s.HTTP
	}
	return http.DefaultClient
}

func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken != "" {
		if err := s.refreshLocked(ctx); err == nil {
			return s.accessToken, nil
		}
		// fall through to a full login
	}
	if err := s.loginLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

func (s *Session) loginLocked(ctx context.Context) error {
	return s.tokenCallLocked(ctx, "/auth/login", map[string]string{
		"email":    s.Email,
		"password": s.Password,
	})
}

func (s *Session) refreshLocked(ctx context.Context) error {
	return s.tokenCallLocked(ctx, "/auth/refresh", map[string]string{
		"refresh_token": s.refreshToken,
	})
}

func (s *Session) tokenCallLocked(ctx context.Context, path string, body map[string]string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.accessToken, s.refreshToken = "", ""
		return apiError(resp)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return err
	}
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().Add(14 * time.Minute)
	return nil
}

// Client implements API against the reservation backend.
type Client struct {
	BaseURL string
	Tokens  TokenSource
	HTTP    *http.Client
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{BaseURL: baseURL, Tokens: tokens, HTTP: &http.Client{Timeout: 15 * time.Second}}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, header http.Header) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type organizationPayload struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Logo        *string   `json:"logo"`
	Description *string   `json:"description"`
}

func (c *Client) listOrganizations(ctx context.Context) ([]organizationPayload, error) {
	var payload []organizationPayload
	if err := c.do(ctx, http.MethodGet, "/organizations", nil, &payload, nil); err != nil {
		return nil, err
	}
	return payload, nil
}

// ListCategories derives the category picker from organization descriptions.
// The backend has no category entity.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	orgs, err := c.listOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []Category
	for _, o := range orgs {
		if o.Description == nil || *o.Description == "" || seen[*o.Description] {
			continue
		}
		seen[*o.Description] = true
		out = append(out, Category{Name: *o.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Client) ListOrganizations(ctx context.Context, category string) ([]Organization, error) {
	orgs, err := c.listOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	var out []Organization
	for _, o := range orgs {
		org := Organization{ID: o.ID, Name: o.Name}
		if o.Logo != nil {
			org.Logo = *o.Logo
		}
		if o.Description != nil {
			org.Description = *o.Description
		}
		if category != "" && org.Description != category {
			continue
		}
		out = append(out, org)
	}
	return out, nil
}

func (c *Client) ListBranches(ctx context.Context, organizationID uuid.UUID) ([]Branch, error) {
	var payload []struct {
		ID              uuid.UUID `json:"id"`
		Name            string    `json:"name"`
		Address         *string   `json:"address"`
		ServicesPerHour int32     `json:"services_per_hour"`
		TimeSpecific    bool      `json:"time_specific"`
	}
	path := fmt.Sprintf("/organizations/%s/branches", organizationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload, nil); err != nil {
		return nil, err
	}
	out := make([]Branch, 0, len(payload))
	for _, b := range payload {
		branch := Branch{ID: b.ID, Name: b.Name, ServicesPerHour: b.ServicesPerHour, TimeSpecific: b.TimeSpecific}
		if b.Address != nil {
			branch.Address = *b.Address
		}
		out = append(out, branch)
	}
	return out, nil
}

func (c *Client) ListServices(ctx context.Context, branchID uuid.UUID) ([]Service, error) {
	var payload []struct {
		ID          uuid.UUID `json:"id"`
		Name        string    `json:"name"`
		Description *string   `json:"description"`
	}
	path := fmt.Sprintf("/branches/%s/services", branchID)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload, nil); err != nil {
		return nil, err
	}
	out := make([]Service, 0, len(payload))
	for _, s := range payload {
		svc := Service{ID: s.ID, Name: s.Name}
		if s.Description != nil {
			svc.Description = *s.Description
		}
		out = append(out, svc)
	}
	return out, nil
}

func (c *Client) ListTimeSlots(ctx context.Context, branchID, serviceID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	var payload []struct {
		DurationID     uuid.UUID `json:"duration_id"`
		TimeFrom       string    `json:"time_from"`
		TimeTo         string    `json:"time_to"`
		IsMorning      bool      `json:"is_morning"`
		RemainingSlots int64     `json:"remaining_slots"`
	}
	q := url.Values{}
	q.Set("service_id", serviceID.String())
	q.Set("date", date.Format(dateLayout))
	path := fmt.Sprintf("/branches/%s/availability?%s", branchID, q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &payload, nil); err != nil {
		return nil, err
	}
	out := make([]TimeSlot, 0, len(payload))
	for _, s := range payload {
		out = append(out, TimeSlot{
			DurationID:     s.DurationID,
			TimeFrom:       s.TimeFrom,
			TimeTo:         s.TimeTo,
			IsMorning:      s.IsMorning,
			RemainingSlots: s.RemainingSlots,
		})
	}
	return out, nil
}

func (c *Client) CreateReservation(ctx context.Context, input CreateReservationInput) (Reservation, error) {
	body := map[string]interface{}{
		"branch_service_id":       input.ServiceID.String(),
		"appointment_date":        input.Date.Format(dateLayout),
		"appointment_duration_id": input.DurationID.String(),
		"first_name":              input.Customer.FirstName,
		"last_name":               input.Customer.LastName,
		"mobile":                  input.Customer.Mobile,
		"party_size":              input.Customer.PartySize,
		"appointment_through":     "self",
	}
	header := http.Header{}
	if input.IdempotencyKey != "" {
		header.Set("Idempotency-Key", input.IdempotencyKey)
	}

	var payload struct {
		ID     uuid.UUID `json:"id"`
		Cnr    string    `json:"cnr"`
		Status string    `json:"status"`
	}
	path := fmt.Sprintf("/branches/%s/reservations", input.BranchID)
	if err := c.do(ctx, http.MethodPost, path, body, &payload, header); err != nil {
		return Reservation{}, err
	}
	return Reservation{ID: payload.ID, CNR: payload.Cnr, Status: payload.Status}, nil
}

// apiError decodes the backend's {"error": "..."} body into an error value.
func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("api: %s (status %d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("api: unexpected status %d", resp.StatusCode)
}
