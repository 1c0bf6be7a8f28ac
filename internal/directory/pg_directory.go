package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the directory needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgDirectory struct {
	db DB
}

func NewPgDirectory(db DB) *PgDirectory {
	return &PgDirectory{db: db}
}

const userColumns = `
	id, first_name, last_name, email, phone, role, department, is_active,
	created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Phone,
		&u.Role,
		&u.Department,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (d *PgDirectory) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := d.db.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (d *PgDirectory) ListActiveDoctors(ctx context.Context, department string) ([]User, error) {
	sql := `
		SELECT` + userColumns + `
		FROM users
		WHERE role = 'doctor'
		  AND is_active
	`
	args := []any{}
	if department != "" {
		sql += ` AND department = $1`
		args = append(args, department)
	}
	sql += ` ORDER BY department, first_name`

	rows, err := d.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (d *PgDirectory) CountActiveDoctors(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRow(ctx, `
		SELECT count(*)
		FROM users
		WHERE role = 'doctor'
		  AND is_active
	`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
