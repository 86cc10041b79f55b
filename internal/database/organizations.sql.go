package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listOrganizations = `
SELECT id, name, logo, description, is_active, created_at
FROM organizations
WHERE is_active = TRUE
ORDER BY name
`

func (q *Queries) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := q.db.Query(ctx, listOrganizations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Organization
	for rows.Next() {
		var i Organization
		if err := rows.Scan(&i.ID, &i.Name, &i.Logo, &i.Description, &i.IsActive, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getOrganization = `
SELECT id, name, logo, description, is_active, created_at
FROM organizations
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	row := q.db.QueryRow(ctx, getOrganization, id)
	var i Organization
	err := row.Scan(&i.ID, &i.Name, &i.Logo, &i.Description, &i.IsActive, &i.CreatedAt)
	return i, err
}

const createOrganization = `
INSERT INTO organizations (name, logo, description)
VALUES ($1, $2, $3)
RETURNING id, name, logo, description, is_active, created_at
`

type CreateOrganizationParams struct {
	Name        string
	Logo        pgtype.Text
	Description pgtype.Text
}

func (q *Queries) CreateOrganization(ctx context.Context, arg CreateOrganizationParams) (Organization, error) {
	row := q.db.QueryRow(ctx, createOrganization, arg.Name, arg.Logo, arg.Description)
	var i Organization
	err := row.Scan(&i.ID, &i.Name, &i.Logo, &i.Description, &i.IsActive, &i.CreatedAt)
	return i, err
}

const updateOrganization = `
UPDATE organizations
SET name = $1, logo = $2, description = $3
WHERE id = $4 AND is_active = TRUE
RETURNING id, name, logo, description, is_active, created_at
`

type UpdateOrganizationParams struct {
	Name        string
	Logo        pgtype.Text
	Description pgtype.Text
	ID          uuid.UUID
}

func (q *Queries) UpdateOrganization(ctx context.Context, arg UpdateOrganizationParams) (Organization, error) {
	row := q.db.QueryRow(ctx, updateOrganization, arg.Name, arg.Logo, arg.Description, arg.ID)
	var i Organization
	err := row.Scan(&i.ID, &i.Name, &i.Logo, &i.Description, &i.IsActive, &i.CreatedAt)
	return i, err
}

const softDeleteOrganization = `
UPDATE organizations
SET is_active = FALSE
WHERE id = $1 AND is_active = TRUE
RETURNING id
`

func (q *Queries) SoftDeleteOrganization(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteOrganization, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}
