package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listReviewsByBranch = `
SELECT id, branch_id, reservation_id, customer_name, rating, comment, status, created_at
FROM reviews
WHERE branch_id = $1
ORDER BY created_at DESC
LIMIT 100
`

func (q *Queries) ListReviewsByBranch(ctx context.Context, branchID uuid.UUID) ([]Review, error) {
	rows, err := q.db.Query(ctx, listReviewsByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Review
	for rows.Next() {
		var i Review
		if err := rows.Scan(&i.ID, &i.BranchID, &i.ReservationID, &i.CustomerName, &i.Rating, &i.Comment, &i.Status, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listApprovedReviewsByBranch = `
SELECT id, branch_id, reservation_id, customer_name, rating, comment, status, created_at
FROM reviews
WHERE branch_id = $1 AND status = 'approved'
ORDER BY created_at DESC
LIMIT 100
`

func (q *Queries) ListApprovedReviewsByBranch(ctx context.Context, branchID uuid.UUID) ([]Review, error) {
	rows, err := q.db.Query(ctx, listApprovedReviewsByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Review
	for rows.Next() {
		var i Review
		if err := rows.Scan(&i.ID, &i.BranchID, &i.ReservationID, &i.CustomerName, &i.Rating, &i.Comment, &i.Status, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createReview = `
INSERT INTO reviews (branch_id, reservation_id, customer_name, rating, comment)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, branch_id, reservation_id, customer_name, rating, comment, status, created_at
`

type CreateReviewParams struct {
	BranchID      uuid.UUID
	ReservationID uuid.NullUUID
	CustomerName  string
	Rating        int32
	Comment       pgtype.Text
}

func (q *Queries) CreateReview(ctx context.Context, arg CreateReviewParams) (Review, error) {
	row := q.db.QueryRow(ctx, createReview,
		arg.BranchID, arg.ReservationID, arg.CustomerName, arg.Rating, arg.Comment)
	var i Review
	err := row.Scan(&i.ID, &i.BranchID, &i.ReservationID, &i.CustomerName, &i.Rating, &i.Comment, &i.Status, &i.CreatedAt)
	return i, err
}

const updateReviewStatus = `
UPDATE reviews
SET status = $1
WHERE id = $2 AND branch_id = $3
RETURNING id, branch_id, reservation_id, customer_name, rating, comment, status, created_at
`

type UpdateReviewStatusParams struct {
	Status   string
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) UpdateReviewStatus(ctx context.Context, arg UpdateReviewStatusParams) (Review, error) {
	row := q.db.QueryRow(ctx, updateReviewStatus, arg.Status, arg.ID, arg.BranchID)
	var i Review
	err := row.Scan(&i.ID, &i.BranchID, &i.ReservationID, &i.CustomerName, &i.Rating, &i.Comment, &i.Status, &i.CreatedAt)
	return i, err
}
