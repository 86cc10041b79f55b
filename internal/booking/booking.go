// Package booking implements the client-side reservation wizard: a linear
// step flow (category, organization, branch, service, date/time) whose
// selections build up a reservation draft submitted in one call. Upstream
// changes cascade: re-selecting an earlier step clears everything that
// depended on it.
package booking

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Step identifies the wizard position. Exactly one step is current at a time.
type Step int

const (
	StepCategory Step = iota
	StepOrganization
	StepBranch
	StepService
	StepDatetime
)

func (s Step) String() string {
	switch s {
	case StepCategory:
		return "category"
	case StepOrganization:
		return "organization"
	case StepBranch:
		return "branch"
	case StepService:
		return "service"
	case StepDatetime:
		return "datetime"
	}
	return "unknown"
}

// Category groups organizations in the picker. The backend does not model
// categories as an entity; they are derived from organization metadata.
type Category struct {
	Name string
}

// Organization is a bookable tenant.
type Organization struct {
	ID          uuid.UUID
	Name        string
	Logo        string
	Description string
}

// Branch is a physical location of an organization.
type Branch struct {
	ID              uuid.UUID
	Name            string
	Address         string
	ServicesPerHour int32
	TimeSpecific    bool
}

// Service is an offering at a branch.
type Service struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// TimeSlot is a bookable interval at a branch for a service and date, with a
// remaining-capacity count. Zero remaining means the option is shown but not
// selectable.
type TimeSlot struct {
	DurationID     uuid.UUID
	TimeFrom       string
	TimeTo         string
	IsMorning      bool
	RemainingSlots int64
}

// Customer is the identity attached to the reservation at confirmation.
type Customer struct {
	FirstName string
	LastName  string
	Mobile    string
	PartySize int32
}

// Reservation is the confirmation returned by the backend.
type Reservation struct {
	ID     uuid.UUID
	CNR    string
	Status string
}

// CreateReservationInput is the assembled draft handed to the API.
type CreateReservationInput struct {
	BranchID       uuid.UUID
	ServiceID      uuid.UUID
	DurationID     uuid.UUID
	Date           time.Time
	Customer       Customer
	IdempotencyKey string
}

// API loads each step's options and submits the final draft. Implemented by
// *Client against the CHECHE backend; tests substitute fakes.
type API interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListOrganizations(ctx context.Context, category string) ([]Organization, error)
	ListBranches(ctx context.Context, organizationID uuid.UUID) ([]Branch, error)
	ListServices(ctx context.Context, branchID uuid.UUID) ([]Service, error)
	ListTimeSlots(ctx context.Context, branchID, serviceID uuid.UUID, date time.Time) ([]TimeSlot, error)
	CreateReservation(ctx context.Context, input CreateReservationInput) (Reservation, error)
}

// Notifier surfaces non-blocking notices (failed option loads, failed
// submissions). Navigation never blocks on it.
type Notifier interface {
	Notify(message string)
}

// LogNotifier writes notices to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(message string) {
	log.Printf("INFO: %s", message)
}
