package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	ReservationStatusConfirmed  = "confirmed"
	ReservationStatusCheckedIn  = "checked_in"
	ReservationStatusCheckedOut = "checked_out"
	ReservationStatusCancelled  = "cancelled"
)

const (
	QueueStatusWaiting = "waiting"
	QueueStatusCalled  = "called"
	QueueStatusServed  = "served"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	RoleSuperadmin          = "superadmin"
	RoleOrganizationManager = "organization_manager"
	RoleBranchManager       = "branch_manager"
	RoleFieldAgent          = "field_agent"
	RoleRestaurantOfficer   = "restaurant_officer"
	RoleAdministrator       = "administrator"
	RoleTVAccess            = "tv_access"
	RoleCustomer            = "customer"
)

const (
	AppointmentThroughSelf  = "self"
	AppointmentThroughAgent = "agent"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)
