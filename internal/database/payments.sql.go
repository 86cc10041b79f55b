package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listPaymentsByReservation = `
SELECT id, reservation_id, amount, method, status, reference_number, created_by, created_at
FROM payments
WHERE reservation_id = $1
ORDER BY created_at
`

func (q *Queries) ListPaymentsByReservation(ctx context.Context, reservationID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByReservation, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(&i.ID, &i.ReservationID, &i.Amount, &i.Method, &i.Status, &i.ReferenceNumber, &i.CreatedBy, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createPayment = `
INSERT INTO payments (reservation_id, amount, method, status, reference_number, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, reservation_id, amount, method, status, reference_number, created_by, created_at
`

type CreatePaymentParams struct {
	ReservationID   uuid.UUID
	Amount          pgtype.Numeric
	Method          string
	Status          string
	ReferenceNumber pgtype.Text
	CreatedBy       uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.ReservationID, arg.Amount, arg.Method, arg.Status, arg.ReferenceNumber, arg.CreatedBy)
	var i Payment
	err := row.Scan(&i.ID, &i.ReservationID, &i.Amount, &i.Method, &i.Status, &i.ReferenceNumber, &i.CreatedBy, &i.CreatedAt)
	return i, err
}

const sumPaymentsByReservation = `
SELECT COALESCE(SUM(amount), 0)
FROM payments
WHERE reservation_id = $1 AND status = 'completed'
`

func (q *Queries) SumPaymentsByReservation(ctx context.Context, reservationID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumPaymentsByReservation, reservationID)
	var sum pgtype.Numeric
	err := row.Scan(&sum)
	return sum, err
}
