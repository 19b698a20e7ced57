package pgstore

import (
	"context"
	"time"

	"github.com/open-rails/otpkit/core"
)

func (s *Store) CreateSession(ctx context.Context, rs core.RefreshSession) error {
	_, err := s.pg.Exec(ctx, `INSERT INTO refresh_sessions (id, family_id, user_id, current_token_hash, created_at, last_used_at, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rs.ID, rs.FamilyID, rs.UserID, rs.CurrentTokenHash, rs.CreatedAt, rs.LastUsedAt, rs.ExpiresAt)
	return err
}

// RotateSession swaps the token hash in place. A hit on previous_token_hash means the
// token was already rotated and is being replayed, so the family is revoked.
func (s *Store) RotateSession(ctx context.Context, presentedHash, newHash string, now time.Time) (*core.RefreshSession, error) {
	var rs core.RefreshSession
	err := s.pg.QueryRow(ctx, `UPDATE refresh_sessions
        SET previous_token_hash=current_token_hash, current_token_hash=$2, last_used_at=$3
        WHERE current_token_hash=$1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > $3)
        RETURNING id::text, family_id::text, user_id::text, current_token_hash, previous_token_hash, created_at, last_used_at, expires_at, revoked_at`,
		presentedHash, newHash, now).
		Scan(&rs.ID, &rs.FamilyID, &rs.UserID, &rs.CurrentTokenHash, &rs.PreviousTokenHash, &rs.CreatedAt, &rs.LastUsedAt, &rs.ExpiresAt, &rs.RevokedAt)
	if err == nil {
		return &rs, nil
	}
	if !noRows(err) {
		return nil, err
	}

	var family string
	err = s.pg.QueryRow(ctx, `SELECT family_id::text FROM refresh_sessions
        WHERE previous_token_hash=$1 AND revoked_at IS NULL`, presentedHash).Scan(&family)
	if noRows(err) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.pg.Exec(ctx, `UPDATE refresh_sessions SET revoked_at=$2 WHERE family_id=$1 AND revoked_at IS NULL`, family, now); err != nil {
		return nil, err
	}
	return nil, core.ErrRefreshReuse
}
