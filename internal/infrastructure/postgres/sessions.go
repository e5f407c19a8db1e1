package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bucket-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, user_id, enable, refresh_token, refresh_expires_at, created_at, updated_at`

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.SessionID, s.UserID, s.Enable, s.RefreshToken, s.RefreshExpiresAt, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return r.queryOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
}

// GetByRefreshToken returns ErrUnauthorized when the session is disabled.
func (r *SessionRepo) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	s, err := r.queryOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token = $1`, token)
	if err != nil {
		return nil, err
	}
	if !s.Enable {
		return nil, fmt.Errorf("session disabled: %w", domain.ErrUnauthorized)
	}
	return s, nil
}

func (r *SessionRepo) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error {
	return r.exec(ctx, `
		UPDATE sessions
		SET refresh_token = $2, refresh_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, sessionID, newToken, newExpiry, time.Now().UTC())
}

func (r *SessionRepo) Disable(ctx context.Context, sessionID string) error {
	return r.exec(ctx, `UPDATE sessions SET enable = FALSE, updated_at = $2 WHERE id = $1`, sessionID, time.Now().UTC())
}

func (r *SessionRepo) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *SessionRepo) queryOne(ctx context.Context, query string, arg string) (*domain.Session, error) {
	var s domain.Session
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.SessionID,
		&s.UserID,
		&s.Enable,
		&s.RefreshToken,
		&s.RefreshExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
