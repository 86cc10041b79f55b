package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listBranchesByOrganization = `
SELECT id, organization_id, name, address, services_per_hour, time_specific, is_active, created_at
FROM branches
WHERE organization_id = $1 AND is_active = TRUE
ORDER BY name
`

func (q *Queries) ListBranchesByOrganization(ctx context.Context, organizationID uuid.UUID) ([]Branch, error) {
	rows, err := q.db.Query(ctx, listBranchesByOrganization, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Branch
	for rows.Next() {
		var i Branch
		if err := rows.Scan(&i.ID, &i.OrganizationID, &i.Name, &i.Address, &i.ServicesPerHour, &i.TimeSpecific, &i.IsActive, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getBranch = `
SELECT id, organization_id, name, address, services_per_hour, time_specific, is_active, created_at
FROM branches
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetBranch(ctx context.Context, id uuid.UUID) (Branch, error) {
	row := q.db.QueryRow(ctx, getBranch, id)
	var i Branch
	err := row.Scan(&i.ID, &i.OrganizationID, &i.Name, &i.Address, &i.ServicesPerHour, &i.TimeSpecific, &i.IsActive, &i.CreatedAt)
	return i, err
}

const createBranch = `
INSERT INTO branches (organization_id, name, address, services_per_hour, time_specific)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, organization_id, name, address, services_per_hour, time_specific, is_active, created_at
`

type CreateBranchParams struct {
	OrganizationID  uuid.UUID
	Name            string
	Address         pgtype.Text
	ServicesPerHour int32
	TimeSpecific    bool
}

func (q *Queries) CreateBranch(ctx context.Context, arg CreateBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, createBranch, arg.OrganizationID, arg.Name, arg.Address, arg.ServicesPerHour, arg.TimeSpecific)
	var i Branch
	err := row.Scan(&i.ID, &i.OrganizationID, &i.Name, &i.Address, &i.ServicesPerHour, &i.TimeSpecific, &i.IsActive, &i.CreatedAt)
	return i, err
}

const updateBranch = `
UPDATE branches
SET name = $1, address = $2, services_per_hour = $3, time_specific = $4
WHERE id = $5 AND organization_id = $6 AND is_active = TRUE
RETURNING id, organization_id, name, address, services_per_hour, time_specific, is_active, created_at
`

type UpdateBranchParams struct {
	Name            string
	Address         pgtype.Text
	ServicesPerHour int32
	TimeSpecific    bool
	ID              uuid.UUID
	OrganizationID  uuid.UUID
}

func (q *Queries) UpdateBranch(ctx context.Context, arg UpdateBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, updateBranch, arg.Name, arg.Address, arg.ServicesPerHour, arg.TimeSpecific, arg.ID, arg.OrganizationID)
	var i Branch
	err := row.Scan(&i.ID, &i.OrganizationID, &i.Name, &i.Address, &i.ServicesPerHour, &i.TimeSpecific, &i.IsActive, &i.CreatedAt)
	return i, err
}

const softDeleteBranch = `
UPDATE branches
SET is_active = FALSE
WHERE id = $1 AND organization_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteBranchParams struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
}

func (q *Queries) SoftDeleteBranch(ctx context.Context, arg SoftDeleteBranchParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteBranch, arg.ID, arg.OrganizationID)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}
