package database

import (
	"context"

	"github.com/google/uuid"
)

const getUserByEmail = `
SELECT id, organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active, created_at, updated_at
FROM users
WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	return scanUser(row)
}

const getUserByID = `
SELECT id, organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active, created_at, updated_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	return scanUser(row)
}

const getUserByMobile = `
SELECT id, organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active, created_at, updated_at
FROM users
WHERE mobile = $1
`

func (q *Queries) GetUserByMobile(ctx context.Context, mobile string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByMobile, mobile)
	return scanUser(row)
}

const listUsersByBranch = `
SELECT id, organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active, created_at, updated_at
FROM users
WHERE branch_id = $1 AND is_active = TRUE
ORDER BY lastname, firstname
`

func (q *Queries) ListUsersByBranch(ctx context.Context, branchID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.OrganizationID, &i.BranchID, &i.Firstname, &i.Lastname, &i.Email, &i.Mobile, &i.HashedPassword, &i.Role, &i.IsActive, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createUser = `
INSERT INTO users (organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active, created_at, updated_at
`

type CreateUserParams struct {
	OrganizationID uuid.NullUUID
	BranchID       uuid.NullUUID
	Firstname      string
	Lastname       string
	Email          string
	Mobile         string
	HashedPassword string
	Role           string
	IsActive       bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.OrganizationID, arg.BranchID, arg.Firstname, arg.Lastname,
		arg.Email, arg.Mobile, arg.HashedPassword, arg.Role, arg.IsActive)
	return scanUser(row)
}

const updateUser = `
UPDATE users
SET firstname = $1, lastname = $2, email = $3, mobile = $4, role = $5, updated_at = NOW()
WHERE id = $6 AND branch_id = $7 AND is_active = TRUE
RETURNING id, organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active, created_at, updated_at
`

type UpdateUserParams struct {
	Firstname string
	Lastname  string
	Email     string
	Mobile    string
	Role      string
	ID        uuid.UUID
	BranchID  uuid.NullUUID
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUser,
		arg.Firstname, arg.Lastname, arg.Email, arg.Mobile, arg.Role, arg.ID, arg.BranchID)
	return scanUser(row)
}

const activateUser = `
UPDATE users
SET is_active = TRUE, updated_at = NOW()
WHERE id = $1
RETURNING id, organization_id, branch_id, firstname, lastname, email, mobile, hashed_password, role, is_active, created_at, updated_at
`

func (q *Queries) ActivateUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, activateUser, id)
	return scanUser(row)
}

const softDeleteUser = `
UPDATE users
SET is_active = FALSE, updated_at = NOW()
WHERE id = $1 AND branch_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteUserParams struct {
	ID       uuid.UUID
	BranchID uuid.NullUUID
}

func (q *Queries) SoftDeleteUser(ctx context.Context, arg SoftDeleteUserParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteUser, arg.ID, arg.BranchID)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var i User
	err := row.Scan(&i.ID, &i.OrganizationID, &i.BranchID, &i.Firstname, &i.Lastname, &i.Email, &i.Mobile, &i.HashedPassword, &i.Role, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}
