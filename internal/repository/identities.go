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

// Identity is a local sign-in record. Profiles are provisioned from it asynchronously.
type Identity struct {
	ID           model.UserID
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
}

// Session backs one issued access token.
type Session struct {
	ID        string
	UserID    model.UserID
	ExpiresAt time.Time
	Revoked   bool
}

type IdentityRepository interface {
	CreateIdentity(ctx context.Context, id *Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	// ListUnprovisioned returns identities that have no profile yet.
	ListUnprovisioned(ctx context.Context) ([]Identity, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	RevokeSession(ctx context.Context, id string) error
}

type DBAuthRepository struct { // implements IdentityRepository, SessionRepository
	db db.DB
}

func NewDBAuthRepository(db db.DB) *DBAuthRepository {
	return &DBAuthRepository{db: db}
}

func (r *DBAuthRepository) CreateIdentity(ctx context.Context, id *Identity) error {
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	id.Email = strings.ToLower(id.Email)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_users (id, email, password_hash, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.ID, id.Email, id.PasswordHash, id.Name, id.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating identity: %w", err)
	}
	return nil
}

func (r *DBAuthRepository) GetIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	var id Identity
	var name sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, created_at FROM auth_users WHERE email = ?`, strings.ToLower(email)).
		Scan(&id.ID, &id.Email, &id.PasswordHash, &name, &id.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading identity: %w", err)
	}
	id.Name = name.String
	return &id, nil
}

func (r *DBAuthRepository) ListUnprovisioned(ctx context.Context) ([]Identity, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.email, a.name, a.created_at FROM auth_users a
LEFT JOIN profiles p ON p.id = a.id
WHERE p.id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("error querying identities: %w", err)
	}
	defer rows.Close()

	var ids []Identity
	for rows.Next() {
		var id Identity
		var name sql.NullString
		if err := rows.Scan(&id.ID, &id.Email, &name, &id.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning identity: %w", err)
		}
		id.Name = name.String
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *DBAuthRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)`,
		s.ID, s.UserID, s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("error creating session: %w", err)
	}
	return nil
}

func (r *DBAuthRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, expires_at, revoked FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}
	return &s, nil
}

func (r *DBAuthRepository) RevokeSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error revoking session: %w", err)
	}
	return nil
}
