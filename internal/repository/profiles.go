package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/debemdeboas/war-room/internal/db"
	"github.com/debemdeboas/war-room/internal/model"
)

type DBProfileRepository struct { // implements ProfileRepository
	db db.DB
}

func NewDBProfileRepository(db db.DB) *DBProfileRepository {
	return &DBProfileRepository{db: db}
}

const selectProfile = `SELECT id, email, name, role, created_at, updated_at FROM profiles`

func scanProfile(row rowScanner) (*model.User, error) {
	var u model.User
	var name sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &name, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	return &u, nil
}

func (r *DBProfileRepository) GetProfile(ctx context.Context, id model.UserID) (*model.User, error) {
	u, err := scanProfile(r.db.QueryRowContext(ctx, selectProfile+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading profile %s: %w", id, err)
	}
	return u, nil
}

func (r *DBProfileRepository) GetProfileByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanProfile(r.db.QueryRowContext(ctx, selectProfile+" WHERE email = ?", strings.ToLower(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading profile %s: %w", email, err)
	}
	return u, nil
}

// CreateProfile inserts the profile. An existing profile with the same id is left as is.
func (r *DBProfileRepository) CreateProfile(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = model.RoleAdmin
	}
	u.Email = strings.ToLower(u.Email)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, name, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.Email, u.Name, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating profile: %w", err)
	}
	return nil
}

func (r *DBProfileRepository) DeleteProfile(ctx context.Context, id model.UserID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DBProfileRepository) CountByRole(ctx context.Context, role model.Role) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE role = ?`, role).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting profiles: %w", err)
	}
	return count, nil
}
