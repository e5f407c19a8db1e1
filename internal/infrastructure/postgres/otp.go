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

// OTPRegistry keeps one row per email in otp_codes; Put replaces it.
type OTPRegistry struct {
	pool *pgxpool.Pool
}

func NewOTPRegistry(pool *pgxpool.Pool) *OTPRegistry {
	return &OTPRegistry{pool: pool}
}

func (r *OTPRegistry) Put(ctx context.Context, rec *domain.OTPRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO otp_codes (email, code, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at
	`, rec.Email, rec.Code, rec.IssuedAt, rec.ExpiresAt)
	return err
}

func (r *OTPRegistry) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	var rec domain.OTPRecord
	err := r.pool.QueryRow(ctx, `
		SELECT email, code, issued_at, expires_at FROM otp_codes WHERE email = $1
	`, email).Scan(&rec.Email, &rec.Code, &rec.IssuedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *OTPRegistry) Delete(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otp_codes WHERE email = $1`, email)
	return err
}

// PurgeExpired deletes codes whose expiry has passed and reports how many.
func (r *OTPRegistry) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at <> 0 AND expires_at <= $1`, now.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
