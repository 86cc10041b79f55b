package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createReservation = `
INSERT INTO reservations (cnr, branch_service_id, duration_id, appointment_date, first_name, last_name, mobile, party_size, status, appointment_through, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, cnr, branch_service_id, duration_id, appointment_date, first_name, last_name, mobile, party_size, status, appointment_through, created_by, checked_in_at, checked_out_at, created_at
`

type CreateReservationParams struct {
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
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	row := q.db.QueryRow(ctx, createReservation,
		arg.Cnr, arg.BranchServiceID, arg.DurationID, arg.AppointmentDate,
		arg.FirstName, arg.LastName, arg.Mobile, arg.PartySize,
		arg.Status, arg.AppointmentThrough, arg.CreatedBy)
	return scanReservation(row)
}

const getReservationForBranch = `
SELECT r.id, r.cnr, r.branch_service_id, r.duration_id, r.appointment_date, r.first_name, r.last_name, r.mobile, r.party_size, r.status, r.appointment_through, r.created_by, r.checked_in_at, r.checked_out_at, r.created_at
FROM reservations r
JOIN branch_services bs ON bs.id = r.branch_service_id
WHERE r.id = $1 AND bs.branch_id = $2
`

type GetReservationForBranchParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetReservationForBranch(ctx context.Context, arg GetReservationForBranchParams) (Reservation, error) {
	row := q.db.QueryRow(ctx, getReservationForBranch, arg.ID, arg.BranchID)
	return scanReservation(row)
}

const getReservationByID = `
SELECT id, cnr, branch_service_id, duration_id, appointment_date, first_name, last_name, mobile, party_size, status, appointment_through, created_by, checked_in_at, checked_out_at, created_at
FROM reservations
WHERE id = $1
`

func (q *Queries) GetReservationByID(ctx context.Context, id uuid.UUID) (Reservation, error) {
	row := q.db.QueryRow(ctx, getReservationByID, id)
	return scanReservation(row)
}

const searchReservationsByBranch = `
SELECT r.id, r.cnr, r.first_name, r.last_name, r.mobile, r.appointment_date, r.status, r.appointment_through, d.time_from, bs.name AS service_name
FROM reservations r
JOIN branch_services bs ON bs.id = r.branch_service_id
JOIN durations d ON d.id = r.duration_id
WHERE bs.branch_id = $1
  AND ($2 = '' OR r.cnr ILIKE '%' || $2 || '%' OR r.first_name ILIKE '%' || $2 || '%' OR r.last_name ILIKE '%' || $2 || '%' OR r.mobile ILIKE '%' || $2 || '%')
  AND ($3::date IS NULL OR r.appointment_date = $3::date)
ORDER BY r.appointment_date DESC, d.time_from
LIMIT 100
`

type SearchReservationsByBranchParams struct {
	BranchID        uuid.UUID
	Search          string
	AppointmentDate pgtype.Date
}

type SearchReservationsByBranchRow struct {
	ID                 uuid.UUID
	Cnr                string
	FirstName          string
	LastName           string
	Mobile             string
	AppointmentDate    time.Time
	Status             string
	AppointmentThrough string
	TimeFrom           string
	ServiceName        string
}

func (q *Queries) SearchReservationsByBranch(ctx context.Context, arg SearchReservationsByBranchParams) ([]SearchReservationsByBranchRow, error) {
	rows, err := q.db.Query(ctx, searchReservationsByBranch, arg.BranchID, arg.Search, arg.AppointmentDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SearchReservationsByBranchRow
	for rows.Next() {
		var i SearchReservationsByBranchRow
		if err := rows.Scan(&i.ID, &i.Cnr, &i.FirstName, &i.LastName, &i.Mobile, &i.AppointmentDate, &i.Status, &i.AppointmentThrough, &i.TimeFrom, &i.ServiceName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countActiveReservations = `
SELECT COUNT(*)
FROM reservations
WHERE branch_service_id = $1 AND duration_id = $2 AND appointment_date = $3
  AND status IN ('confirmed', 'checked_in')
`

type CountActiveReservationsParams struct {
	BranchServiceID uuid.UUID
	DurationID      uuid.UUID
	AppointmentDate time.Time
}

func (q *Queries) CountActiveReservations(ctx context.Context, arg CountActiveReservationsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveReservations, arg.BranchServiceID, arg.DurationID, arg.AppointmentDate)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getSlotUsage = `
SELECT duration_id, COUNT(*) AS reservation_count
FROM reservations
WHERE branch_service_id = $1 AND appointment_date = $2
  AND status IN ('confirmed', 'checked_in')
GROUP BY duration_id
`

type GetSlotUsageParams struct {
	BranchServiceID uuid.UUID
	AppointmentDate time.Time
}

type GetSlotUsageRow struct {
	DurationID       uuid.UUID
	ReservationCount int64
}

func (q *Queries) GetSlotUsage(ctx context.Context, arg GetSlotUsageParams) ([]GetSlotUsageRow, error) {
	rows, err := q.db.Query(ctx, getSlotUsage, arg.BranchServiceID, arg.AppointmentDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetSlotUsageRow
	for rows.Next() {
		var i GetSlotUsageRow
		if err := rows.Scan(&i.DurationID, &i.ReservationCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const checkInReservation = `
UPDATE reservations
SET status = 'checked_in', checked_in_at = NOW()
WHERE id = $1 AND status = 'confirmed'
RETURNING id, cnr, branch_service_id, duration_id, appointment_date, first_name, last_name, mobile, party_size, status, appointment_through, created_by, checked_in_at, checked_out_at, created_at
`

func (q *Queries) CheckInReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	row := q.db.QueryRow(ctx, checkInReservation, id)
	return scanReservation(row)
}

const checkOutReservation = `
UPDATE reservations
SET status = 'checked_out', checked_out_at = NOW()
WHERE id = $1 AND status = 'checked_in'
RETURNING id, cnr, branch_service_id, duration_id, appointment_date, first_name, last_name, mobile, party_size, status, appointment_through, created_by, checked_in_at, checked_out_at, created_at
`

func (q *Queries) CheckOutReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	row := q.db.QueryRow(ctx, checkOutReservation, id)
	return scanReservation(row)
}

const cancelReservation = `
UPDATE reservations
SET status = 'cancelled'
WHERE id = $1 AND status = 'confirmed'
RETURNING id
`

func (q *Queries) CancelReservation(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, cancelReservation, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}

func scanReservation(row rowScanner) (Reservation, error) {
	var i Reservation
	err := row.Scan(&i.ID, &i.Cnr, &i.BranchServiceID, &i.DurationID, &i.AppointmentDate, &i.FirstName, &i.LastName, &i.Mobile, &i.PartySize, &i.Status, &i.AppointmentThrough, &i.CreatedBy, &i.CheckedInAt, &i.CheckedOutAt, &i.CreatedAt)
	return i, err
}
