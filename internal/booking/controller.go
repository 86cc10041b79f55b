package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrIncompleteDraft is returned by Confirm when required selections are
// missing.
var ErrIncompleteDraft = errors.New("reservation draft is incomplete")

// load keys. Generation counters are kept per key so a stale response never
// overwrites the state of a newer request (last-request-wins by key).
const (
	loadCategories    = "categories"
	loadOrganizations = "organizations"
	loadBranches      = "branches"
	loadServices      = "services"
	loadSlots         = "slots"
)

// Controller owns the current step and the partially-built reservation
// draft. Forward selections advance the wizard; re-selecting an earlier step
// cascades, clearing every downstream selection. Option loading is delegated
// to the API collaborator; load failures degrade to an empty option list and
// a notice, never a blocked wizard.
type Controller struct {
	api    API
	notify Notifier
	now    func() time.Time

	mu     sync.Mutex
	step   Step
	pinned bool

	category     string
	organization *Organization
	branch       *Branch
	service      *Service
	date         time.Time
	slot         *TimeSlot

	// confirmOpen gates Confirm; the idempotency key is minted when the
	// confirmation prompt opens and survives failed submissions so a retry
	// cannot double-book.
	confirmOpen bool
	idemKey     string

	categories    []Category
	organizations []Organization
	branches      []Branch
	services      []Service
	slots         []TimeSlot

	gens map[string]uint64
}

// NewController creates a wizard starting at the category step.
func NewController(api API, notify Notifier) *Controller {
	return &Controller{
		api:    api,
		notify: notify,
		now:    time.Now,
		step:   StepCategory,
		gens:   make(map[string]uint64),
	}
}

// NewPinnedController creates a wizard pinned to one organization. The
// category and organization steps are skipped; the initial step is branch.
func NewPinnedController(api API, notify Notifier, org Organization) *Controller {
	c := NewController(api, notify)
	c.pinned = true
	c.organization = &org
	c.step = StepBranch
	return c
}

func (c *Controller) initialStep() Step {
	if c.pinned {
		return StepBranch
	}
	return StepCategory
}

// Start loads the options for the initial step.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.pinned {
		orgID := c.organization.ID
		gen := c.nextGenLocked(loadBranches)
		c.mu.Unlock()
		c.loadBranches(ctx, gen, orgID)
		return
	}
	gen := c.nextGenLocked(loadCategories)
	c.mu.Unlock()
	c.loadCategories(ctx, gen)
}

// --- Accessors ---

func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Controller) SelectedOrganization() *Organization {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.organization
}

func (c *Controller) SelectedBranch() *Branch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.branch
}

func (c *Controller) SelectedService() *Service {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.service
}

func (c *Controller) SelectedDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.date
}

func (c *Controller) SelectedTime() *TimeSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot
}

// ConfirmPending reports whether a time slot has been chosen and the
// confirmation prompt is open.
func (c *Controller) ConfirmPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmOpen
}

func (c *Controller) Categories() []Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categories
}

func (c *Controller) Organizations() []Organization {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.organizations
}

func (c *Controller) Branches() []Branch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.branches
}

func (c *Controller) Services() []Service {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.services
}

func (c *Controller) TimeSlots() []TimeSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots
}

// --- Forward selections ---

// SelectCategory sets the category, clears all downstream selections and
// advances to the organization step.
func (c *Controller) SelectCategory(ctx context.Context, name string) {
	c.mu.Lock()
	c.category = name
	c.clearOrganizationLocked()
	c.step = StepOrganization
	gen := c.nextGenLocked(loadOrganizations)
	c.mu.Unlock()

	c.loadOrganizations(ctx, gen, name)
}

// SelectOrganization sets the organization, clears branch/service/datetime
// and advances to the branch step. Selecting a different organization from a
// deeper step cascades the same way.
func (c *Controller) SelectOrganization(ctx context.Context, org Organization) {
	c.mu.Lock()
	o := org
	c.organization = &o
	c.clearBranchLocked()
	c.step = StepBranch
	gen := c.nextGenLocked(loadBranches)
	c.mu.Unlock()

	c.loadBranches(ctx, gen, org.ID)
}

// SelectBranch sets the branch, clears service/datetime and advances to the
// service step. A nil branch is ignored with no transition.
func (c *Controller) SelectBranch(ctx context.Context, branch *Branch) {
	if branch == nil {
		return
	}

	c.mu.Lock()
	b := *branch
	c.branch = &b
	c.clearServiceLocked()
	c.step = StepService
	gen := c.nextGenLocked(loadServices)
	c.mu.Unlock()

	c.loadServices(ctx, gen, branch.ID)
}

// SelectService sets the service and advances to the datetime step. Slots
// are not loaded until a date is chosen.
func (c *Controller) SelectService(ctx context.Context, svc Service) {
	c.mu.Lock()
	s := svc
	c.service = &s
	c.clearDatetimeLocked()
	c.step = StepDatetime
	c.mu.Unlock()
}

// SelectDate sets the appointment date and loads the slot grid for it. The
// step does not advance; date and time are both required before the
// confirmation prompt opens. Dates before today (local midnight) are not
// selectable and leave the state untouched.
func (c *Controller) SelectDate(ctx context.Context, date time.Time) {
	c.mu.Lock()
	today := localMidnight(c.now())
	day := localMidnight(date)
	if day.Before(today) {
		c.mu.Unlock()
		return
	}
	if c.branch == nil || c.service == nil {
		c.mu.Unlock()
		return
	}

	c.date = day
	c.slot = nil
	c.slots = nil
	c.confirmOpen = false
	c.idemKey = ""
	branchID, serviceID := c.branch.ID, c.service.ID
	gen := c.nextGenLocked(loadSlots)
	c.mu.Unlock()

	c.loadSlots(ctx, gen, branchID, serviceID, day)
}

// SelectTime sets the time slot and opens the confirmation prompt. A slot
// with no remaining capacity is presented as non-interactive: selecting it
// changes nothing and surfaces no error.
func (c *Controller) SelectTime(slot TimeSlot) {
	if slot.RemainingSlots == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.date.IsZero() {
		return
	}
	s := slot
	c.slot = &s
	c.confirmOpen = true
	if c.idemKey == "" {
		c.idemKey = uuid.NewString()
	}
}

// Confirm assembles the draft and issues the single create-reservation call.
// On success the wizard resets to its initial step (a pinned organization is
// retained). On failure every selection is preserved so the user can retry
// without re-entering prior steps.
func (c *Controller) Confirm(ctx context.Context, customer Customer) (Reservation, error) {
	c.mu.Lock()
	if !c.confirmOpen || c.branch == nil || c.service == nil || c.slot == nil || c.date.IsZero() {
		c.mu.Unlock()
		return Reservation{}, ErrIncompleteDraft
	}
	input := CreateReservationInput{
		BranchID:       c.branch.ID,
		ServiceID:      c.service.ID,
		DurationID:     c.slot.DurationID,
		Date:           c.date,
		Customer:       customer,
		IdempotencyKey: c.idemKey,
	}
	c.mu.Unlock()

	res, err := c.api.CreateReservation(ctx, input)
	if err != nil {
		c.notify.Notify("could not complete the reservation, please try again")
		return Reservation{}, err
	}

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	return res, nil
}

// Back moves to the immediately preceding step and clears only the state
// that belonged to the step being left.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.step {
	case StepDatetime:
		c.clearDatetimeLocked()
		c.step = StepService
	case StepService:
		c.service = nil
		c.step = StepBranch
	case StepBranch:
		if c.pinned {
			return
		}
		c.branch = nil
		c.step = StepOrganization
	case StepOrganization:
		c.organization = nil
		c.step = StepCategory
	case StepCategory:
		// already at the first step
	}
}

// --- Cascade helpers (callers hold c.mu) ---

func (c *Controller) clearOrganizationLocked() {
	c.organization = nil
	c.organizations = nil
	c.clearBranchLocked()
}

func (c *Controller) clearBranchLocked() {
	c.branch = nil
	c.branches = nil
	c.clearServiceLocked()
}

func (c *Controller) clearServiceLocked() {
	c.service = nil
	c.services = nil
	c.clearDatetimeLocked()
}

func (c *Controller) clearDatetimeLocked() {
	c.date = time.Time{}
	c.slot = nil
	c.slots = nil
	c.confirmOpen = false
	c.idemKey = ""
}

func (c *Controller) resetLocked() {
	c.category = ""
	if !c.pinned {
		c.organization = nil
	}
	c.clearBranchLocked()
	c.step = c.initialStep()
}

// --- Option loading ---

// nextGenLocked supersedes any in-flight load for the key.
func (c *Controller) nextGenLocked(key string) uint64 {
	c.gens[key]++
	return c.gens[key]
}

// currentLocked reports whether gen is still the newest request for the key.
func (c *Controller) currentLocked(key string, gen uint64) bool {
	return c.gens[key] == gen
}

func (c *Controller) loadCategories(ctx context.Context, gen uint64) {
	opts, err := c.api.ListCategories(ctx)
	c.mu.Lock()
	if !c.currentLocked(loadCategories, gen) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.categories = nil
		c.mu.Unlock()
		c.notify.Notify("could not load categories")
		return
	}
	c.categories = opts
	c.mu.Unlock()
}

func (c *Controller) loadOrganizations(ctx context.Context, gen uint64, category string) {
	opts, err := c.api.ListOrganizations(ctx, category)
	c.mu.Lock()
	if !c.currentLocked(loadOrganizations, gen) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.organizations = nil
		c.mu.Unlock()
		c.notify.Notify("could not load organizations")
		return
	}
	c.organizations = opts
	c.mu.Unlock()
}

func (c *Controller) loadBranches(ctx context.Context, gen uint64, organizationID uuid.UUID) {
	opts, err := c.api.ListBranches(ctx, organizationID)
	c.mu.Lock()
	if !c.currentLocked(loadBranches, gen) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.branches = nil
		c.mu.Unlock()
		c.notify.Notify("could not load branches")
		return
	}
	c.branches = opts
	c.mu.Unlock()
}

func (c *Controller) loadServices(ctx context.Context, gen uint64, branchID uuid.UUID) {
	opts, err := c.api.ListServices(ctx, branchID)
	c.mu.Lock()
	if !c.currentLocked(loadServices, gen) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.services = nil
		c.mu.Unlock()
		c.notify.Notify("could not load services")
		return
	}
	c.services = opts
	c.mu.Unlock()
}

func (c *Controller) loadSlots(ctx context.Context, gen uint64, branchID, serviceID uuid.UUID, date time.Time) {
	opts, err := c.api.ListTimeSlots(ctx, branchID, serviceID, date)
	c.mu.Lock()
	if !c.currentLocked(loadSlots, gen) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.slots = nil
		c.mu.Unlock()
		c.notify.Notify("could not load available times")
		return
	}
	c.slots = opts
	c.mu.Unlock()
}

func localMidnight(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
