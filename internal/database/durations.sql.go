package database

import (
	"context"

	"github.com/google/uuid"
)

const listDurationsByBranch = `
SELECT id, branch_id, time_from, time_to, is_morning
FROM durations
WHERE branch_id = $1
ORDER BY time_from
`

func (q *Queries) ListDurationsByBranch(ctx context.Context, branchID uuid.UUID) ([]Duration, error) {
	rows, err := q.db.Query(ctx, listDurationsByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Duration
	for rows.Next() {
		var i Duration
		if err := rows.Scan(&i.ID, &i.BranchID, &i.TimeFrom, &i.TimeTo, &i.IsMorning); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getDuration = `
SELECT id, branch_id, time_from, time_to, is_morning
FROM durations
WHERE id = $1 AND branch_id = $2
`

type GetDurationParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetDuration(ctx context.Context, arg GetDurationParams) (Duration, error) {
	row := q.db.QueryRow(ctx, getDuration, arg.ID, arg.BranchID)
	var i Duration
	err := row.Scan(&i.ID, &i.BranchID, &i.TimeFrom, &i.TimeTo, &i.IsMorning)
	return i, err
}

const createDuration = `
INSERT INTO durations (branch_id, time_from, time_to, is_morning)
VALUES ($1, $2, $3, $4)
RETURNING id, branch_id, time_from, time_to, is_morning
`

type CreateDurationParams struct {
	BranchID  uuid.UUID
	TimeFrom  string
	TimeTo    string
	IsMorning bool
}

func (q *Queries) CreateDuration(ctx context.Context, arg CreateDurationParams) (Duration, error) {
	row := q.db.QueryRow(ctx, createDuration, arg.BranchID, arg.TimeFrom, arg.TimeTo, arg.IsMorning)
	var i Duration
	err := row.Scan(&i.ID, &i.BranchID, &i.TimeFrom, &i.TimeTo, &i.IsMorning)
	return i, err
}
