package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenantql/internal/core"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *core.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users
		(id, email, password_hash, first_name, last_name, company_name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.CompanyName,
		boolToInt(u.IsActive), u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.getOne(ctx, `SELECT id, email, password_hash, first_name, last_name, company_name,
		is_active, created_at, updated_at FROM users WHERE email = ?`, email)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*core.User, error) {
	return r.getOne(ctx, `SELECT id, email, password_hash, first_name, last_name, company_name,
		is_active, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*core.User, error) {
	var u core.User
	var isActive int
	var first, last, company sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &first, &last, &company, &isActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FirstName = first.String
	u.LastName = last.String
	u.CompanyName = company.String
	u.IsActive = isActive == 1
	return &u, nil
}

func (r *UserRepo) Update(ctx context.Context, u *core.User) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET email=?, password_hash=?, first_name=?,
		last_name=?, company_name=?, is_active=?, updated_at=? WHERE id=?`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.CompanyName,
		boolToInt(u.IsActive), time.Now().UTC(), u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
