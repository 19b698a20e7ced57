package pgstore

import (
	"context"
	"time"

	"github.com/open-rails/otpkit/core"
)

func (s *Store) InsertCode(ctx context.Context, c core.OTPCode) error {
	_, err := s.pg.Exec(ctx, `INSERT INTO otp_codes (id, phone, code_hash, created_at, expires_at, verified, attempts, bound_user_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.Phone, c.CodeHash, c.CreatedAt, c.ExpiresAt, c.Verified, c.Attempts, c.BoundUserID)
	return err
}

func (s *Store) LatestActiveCode(ctx context.Context, phone string, now time.Time) (*core.OTPCode, error) {
	var c core.OTPCode
	err := s.pg.QueryRow(ctx, `SELECT id::text, phone, code_hash, created_at, expires_at, verified, attempts, bound_user_id::text
        FROM otp_codes
        WHERE phone=$1 AND verified=false AND expires_at > $2
        ORDER BY created_at DESC
        LIMIT 1`, phone, now).
		Scan(&c.ID, &c.Phone, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Verified, &c.Attempts, &c.BoundUserID)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementAttempts is a single-row UPDATE ... RETURNING so concurrent guesses serialize on the row lock.
func (s *Store) IncrementAttempts(ctx context.Context, id string, ceiling int) (int, bool, error) {
	var n int
	err := s.pg.QueryRow(ctx, `UPDATE otp_codes SET attempts = LEAST(attempts + 1, $2)
        WHERE id=$1 AND verified=false
        RETURNING attempts`, id, ceiling).Scan(&n)
	if noRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (s *Store) MarkVerified(ctx context.Context, id string) error {
	_, err := s.pg.Exec(ctx, `UPDATE otp_codes SET verified=true WHERE id=$1`, id)
	return err
}

func (s *Store) BurnActive(ctx context.Context, phone, keepID string, now time.Time) (int64, error) {
	tag, err := s.pg.Exec(ctx, `UPDATE otp_codes SET verified=true
        WHERE phone=$1 AND id<>$2 AND verified=false AND expires_at > $3`, phone, keepID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) LastIssuedAt(ctx context.Context, phone string) (time.Time, bool, error) {
	var at *time.Time
	if err := s.pg.QueryRow(ctx, `SELECT max(created_at) FROM otp_codes WHERE phone=$1`, phone).Scan(&at); err != nil {
		return time.Time{}, false, err
	}
	if at == nil {
		return time.Time{}, false, nil
	}
	return *at, true, nil
}

func (s *Store) BurnExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	tag, err := s.pg.Exec(ctx, `UPDATE otp_codes SET verified=true
        WHERE id IN (
            SELECT id FROM otp_codes
            WHERE verified=false AND expires_at <= $1
            ORDER BY expires_at
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )`, now, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
