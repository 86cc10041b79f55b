package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// GetNextTicketNumber returns MAX+1 of today's ticket numbers for a branch.
// Concurrent callers can race on the same number; the unique constraint on
// (branch_id, created_at::date, ticket_number) surfaces the collision and
// callers retry.
const getNextTicketNumber = `
SELECT COALESCE(MAX(ticket_number), 0) + 1
FROM queue_entries
WHERE branch_id = $1 AND created_at::date = CURRENT_DATE
`

func (q *Queries) GetNextTicketNumber(ctx context.Context, branchID uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getNextTicketNumber, branchID)
	var n int32
	err := row.Scan(&n)
	return n, err
}

const createQueueEntry = `
INSERT INTO queue_entries (branch_id, reservation_id, ticket_number, first_name, last_name, phone_number, branch_service_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, branch_id, reservation_id, ticket_number, first_name, last_name, phone_number, branch_service_id, status, created_at, called_at
`

type CreateQueueEntryParams struct {
	BranchID        uuid.UUID
	ReservationID   uuid.NullUUID
	TicketNumber    int32
	FirstName       string
	LastName        string
	PhoneNumber     pgtype.Text
	BranchServiceID uuid.NullUUID
}

func (q *Queries) CreateQueueEntry(ctx context.Context, arg CreateQueueEntryParams) (QueueEntry, error) {
	row := q.db.QueryRow(ctx, createQueueEntry,
		arg.BranchID, arg.ReservationID, arg.TicketNumber, arg.FirstName,
		arg.LastName, arg.PhoneNumber, arg.BranchServiceID)
	return scanQueueEntry(row)
}

const listWaitingQueueByBranch = `
SELECT id, branch_id, reservation_id, ticket_number, first_name, last_name, phone_number, branch_service_id, status, created_at, called_at
FROM queue_entries
WHERE branch_id = $1 AND created_at::date = CURRENT_DATE AND status IN ('waiting', 'called')
ORDER BY ticket_number
`

func (q *Queries) ListWaitingQueueByBranch(ctx context.Context, branchID uuid.UUID) ([]QueueEntry, error) {
	rows, err := q.db.Query(ctx, listWaitingQueueByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QueueEntry
	for rows.Next() {
		var i QueueEntry
		if err := rows.Scan(&i.ID, &i.BranchID, &i.ReservationID, &i.TicketNumber, &i.FirstName, &i.LastName, &i.PhoneNumber, &i.BranchServiceID, &i.Status, &i.CreatedAt, &i.CalledAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// CallNextQueueEntry promotes the oldest waiting entry to called.
// SKIP LOCKED keeps two officers from calling the same ticket.
const callNextQueueEntry = `
UPDATE queue_entries
SET status = 'called', called_at = NOW()
WHERE id = (
	SELECT id FROM queue_entries
	WHERE branch_id = $1 AND created_at::date = CURRENT_DATE AND status = 'waiting'
	ORDER BY ticket_number
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, branch_id, reservation_id, ticket_number, first_name, last_name, phone_number, branch_service_id, status, created_at, called_at
`

func (q *Queries) CallNextQueueEntry(ctx context.Context, branchID uuid.UUID) (QueueEntry, error) {
	row := q.db.QueryRow(ctx, callNextQueueEntry, branchID)
	return scanQueueEntry(row)
}

const markQueueEntryServed = `
UPDATE queue_entries
SET status = 'served'
WHERE id = $1 AND branch_id = $2 AND status = 'called'
RETURNING id, branch_id, reservation_id, ticket_number, first_name, last_name, phone_number, branch_service_id, status, created_at, called_at
`

type MarkQueueEntryServedParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) MarkQueueEntryServed(ctx context.Context, arg MarkQueueEntryServedParams) (QueueEntry, error) {
	row := q.db.QueryRow(ctx, markQueueEntryServed, arg.ID, arg.BranchID)
	return scanQueueEntry(row)
}

func scanQueueEntry(row rowScanner) (QueueEntry, error) {
	var i QueueEntry
	err := row.Scan(&i.ID, &i.BranchID, &i.ReservationID, &i.TicketNumber, &i.FirstName, &i.LastName, &i.PhoneNumber, &i.BranchServiceID, &i.Status, &i.CreatedAt, &i.CalledAt)
	return i, err
}
