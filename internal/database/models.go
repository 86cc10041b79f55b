package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Organization struct {
	ID          uuid.UUID
	Name        string
	Logo        pgtype.Text
	Description pgtype.Text
	IsActive    bool
	CreatedAt   time.Time
}

type Branch struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	Name            string
	Address         pgtype.Text
	ServicesPerHour int32
	TimeSpecific    bool
	IsActive        bool
	CreatedAt       time.Time
}

type BranchService struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	Name        string
	Description pgtype.Text
	IsActive    bool
	CreatedAt   time.Time
}

type Duration struct {
	ID        uuid.UUID
	BranchID  uuid.UUID
	TimeFrom  string
	TimeTo    string
	IsMorning bool
}

type User struct {
	ID             uuid.UUID
	OrganizationID uuid.NullUUID
	BranchID       uuid.NullUUID
	Firstname      string
	Lastname       string
	Email          string
	Mobile         string
	HashedPassword string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Reservation struct {
	ID                 uuid.UUID
	Cnr                string
	BranchServiceID    uuid.UUID
	DurationID         uuid.UUID
	AppointmentDate    time.Time
	FirstName          string
	LastName           string
	Mobile             string
	PartySize          int32
	Status             string
	AppointmentThrough string
	CreatedBy          uuid.UUID
	CheckedInAt        pgtype.Timestamptz
	CheckedOutAt       pgtype.Timestamptz
	CreatedAt          time.Time
}

type Payment struct {
	ID              uuid.UUID
	ReservationID   uuid.UUID
	Amount          pgtype.Numeric
	Method          string
	Status          string
	ReferenceNumber pgtype.Text
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
}

type Review struct {
	ID            uuid.UUID
	BranchID      uuid.UUID
	ReservationID uuid.NullUUID
	CustomerName  string
	Rating        int32
	Comment       pgtype.Text
	Status        string
	CreatedAt     time.Time
}

type QueueEntry struct {
	ID              uuid.UUID
	BranchID        uuid.UUID
	ReservationID   uuid.NullUUID
	TicketNumber    int32
	FirstName       string
	LastName        string
	PhoneNumber     pgtype.Text
	BranchServiceID uuid.NullUUID
	Status          string
	CreatedAt       time.Time
	CalledAt        pgtype.Timestamptz
}
