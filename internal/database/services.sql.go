package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listServicesByBranch = `
SELECT id, branch_id, name, description, is_active, created_at
FROM branch_services
WHERE branch_id = $1 AND is_active = TRUE
ORDER BY name
`

func (q *Queries) ListServicesByBranch(ctx context.Context, branchID uuid.UUID) ([]BranchService, error) {
	rows, err := q.db.Query(ctx, listServicesByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BranchService
	for rows.Next() {
		var i BranchService
		if err := rows.Scan(&i.ID, &i.BranchID, &i.Name, &i.Description, &i.IsActive, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getBranchService = `
SELECT id, branch_id, name, description, is_active, created_at
FROM branch_services
WHERE id = $1 AND branch_id = $2 AND is_active = TRUE
`

type GetBranchServiceParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetBranchService(ctx context.Context, arg GetBranchServiceParams) (BranchService, error) {
	row := q.db.QueryRow(ctx, getBranchService, arg.ID, arg.BranchID)
	var i BranchService
	err := row.Scan(&i.ID, &i.BranchID, &i.Name, &i.Description, &i.IsActive, &i.CreatedAt)
	return i, err
}

const createBranchService = `
INSERT INTO branch_services (branch_id, name, description)
VALUES ($1, $2, $3)
RETURNING id, branch_id, name, description, is_active, created_at
`

type CreateBranchServiceParams struct {
	BranchID    uuid.UUID
	Name        string
	Description pgtype.Text
}

func (q *Queries) CreateBranchService(ctx context.Context, arg CreateBranchServiceParams) (BranchService, error) {
	row := q.db.QueryRow(ctx, createBranchService, arg.BranchID, arg.Name, arg.Description)
	var i BranchService
	err := row.Scan(&i.ID, &i.BranchID, &i.Name, &i.Description, &i.IsActive, &i.CreatedAt)
	return i, err
}

const updateBranchService = `
UPDATE branch_services
SET name = $1, description = $2
WHERE id = $3 AND branch_id = $4 AND is_active = TRUE
RETURNING id, branch_id, name, description, is_active, created_at
`

type UpdateBranchServiceParams struct {
	Name        string
	Description pgtype.Text
	ID          uuid.UUID
	BranchID    uuid.UUID
}

func (q *Queries) UpdateBranchService(ctx context.Context, arg UpdateBranchServiceParams) (BranchService, error) {
	row := q.db.QueryRow(ctx, updateBranchService, arg.Name, arg.Description, arg.ID, arg.BranchID)
	var i BranchService
	err := row.Scan(&i.ID, &i.BranchID, &i.Name, &i.Description, &i.IsActive, &i.CreatedAt)
	return i, err
}

const softDeleteBranchService = `
UPDATE branch_services
SET is_active = FALSE
WHERE id = $1 AND branch_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteBranchServiceParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) SoftDeleteBranchService(ctx context.Context, arg SoftDeleteBranchServiceParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteBranchService, arg.ID, arg.BranchID)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}
