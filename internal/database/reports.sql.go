package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const getDailyReservations = `
SELECT r.appointment_date::text AS date,
       COUNT(*) AS reservation_count,
       COUNT(*) FILTER (WHERE r.status IN ('checked_in', 'checked_out')) AS attended_count,
       COUNT(*) FILTER (WHERE r.status = 'cancelled') AS cancelled_count
FROM reservations r
JOIN branch_services bs ON bs.id = r.branch_service_id
WHERE bs.branch_id = $1 AND r.appointment_date BETWEEN $2 AND $3
GROUP BY r.appointment_date
ORDER BY r.appointment_date
`

type GetDailyReservationsParams struct {
	BranchID  uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

type GetDailyReservationsRow struct {
	Date             string
	ReservationCount int64
	AttendedCount    int64
	CancelledCount   int64
}

func (q *Queries) GetDailyReservations(ctx context.Context, arg GetDailyReservationsParams) ([]GetDailyReservationsRow, error) {
	rows, err := q.db.Query(ctx, getDailyReservations, arg.BranchID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyReservationsRow
	for rows.Next() {
		var i GetDailyReservationsRow
		if err := rows.Scan(&i.Date, &i.ReservationCount, &i.AttendedCount, &i.CancelledCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getServiceBreakdown = `
SELECT bs.id AS service_id, bs.name AS service_name, COUNT(*) AS reservation_count
FROM reservations r
JOIN branch_services bs ON bs.id = r.branch_service_id
WHERE bs.branch_id = $1 AND r.appointment_date BETWEEN $2 AND $3
GROUP BY bs.id, bs.name
ORDER BY reservation_count DESC
`

type GetServiceBreakdownParams struct {
	BranchID  uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

type GetServiceBreakdownRow struct {
	ServiceID        uuid.UUID
	ServiceName      string
	ReservationCount int64
}

func (q *Queries) GetServiceBreakdown(ctx context.Context, arg GetServiceBreakdownParams) ([]GetServiceBreakdownRow, error) {
	rows, err := q.db.Query(ctx, getServiceBreakdown, arg.BranchID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetServiceBreakdownRow
	for rows.Next() {
		var i GetServiceBreakdownRow
		if err := rows.Scan(&i.ServiceID, &i.ServiceName, &i.ReservationCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getHourlyLoad = `
SELECT d.time_from, COUNT(*) AS reservation_count
FROM reservations r
JOIN branch_services bs ON bs.id = r.branch_service_id
JOIN durations d ON d.id = r.duration_id
WHERE bs.branch_id = $1 AND r.appointment_date BETWEEN $2 AND $3
GROUP BY d.time_from
ORDER BY d.time_from
`

type GetHourlyLoadParams struct {
	BranchID  uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

type GetHourlyLoadRow struct {
	TimeFrom         string
	ReservationCount int64
}

func (q *Queries) GetHourlyLoad(ctx context.Context, arg GetHourlyLoadParams) ([]GetHourlyLoadRow, error) {
	rows, err := q.db.Query(ctx, getHourlyLoad, arg.BranchID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetHourlyLoadRow
	for rows.Next() {
		var i GetHourlyLoadRow
		if err := rows.Scan(&i.TimeFrom, &i.ReservationCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getBranchComparison = `
SELECT b.id AS branch_id, b.name AS branch_name,
       COUNT(r.id) AS reservation_count,
       COUNT(r.id) FILTER (WHERE r.status IN ('checked_in', 'checked_out')) AS attended_count
FROM branches b
LEFT JOIN branch_services bs ON bs.branch_id = b.id
LEFT JOIN reservations r ON r.branch_service_id = bs.id AND r.appointment_date BETWEEN $2 AND $3
WHERE b.organization_id = $1 AND b.is_active = TRUE
GROUP BY b.id, b.name
ORDER BY reservation_count DESC
`

type GetBranchComparisonParams struct {
	OrganizationID uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
}

type GetBranchComparisonRow struct {
	BranchID         uuid.UUID
	BranchName       string
	ReservationCount int64
	AttendedCount    int64
}

func (q *Queries) GetBranchComparison(ctx context.Context, arg GetBranchComparisonParams) ([]GetBranchComparisonRow, error) {
	rows, err := q.db.Query(ctx, getBranchComparison, arg.OrganizationID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetBranchComparisonRow
	for rows.Next() {
		var i GetBranchComparisonRow
		if err := rows.Scan(&i.BranchID, &i.BranchName, &i.ReservationCount, &i.AttendedCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
