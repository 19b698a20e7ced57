package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/open-rails/otpkit/core"
)

const userCols = `id::text, email, phone, full_name, account_type, promo_source, last_login_at, created_at`

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.FullName, &u.AccountType, &u.PromoSource, &u.LastLoginAt, &u.CreatedAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return scanUser(s.pg.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return scanUser(s.pg.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email)=lower($1)`, strings.TrimSpace(email)))
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*core.User, error) {
	return scanUser(s.pg.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE phone=$1`, phone))
}

// CreateUser writes the user and its credential row in one transaction.
func (s *Store) CreateUser(ctx context.Context, nu core.NewUser) (*core.User, error) {
	tx, err := s.pg.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := nu.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var ph *string
	if nu.Phone != "" {
		p := nu.Phone
		ph = &p
	}
	u, err := scanUser(tx.QueryRow(ctx, `INSERT INTO users (id, email, phone, full_name, account_type, promo_source, last_login_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
        RETURNING `+userCols,
		uuid.NewString(), strings.ToLower(strings.TrimSpace(nu.Email)), ph, nu.FullName, nu.AccountType, nu.PromoSource, created))
	if err != nil {
		return nil, mapWriteErr(err)
	}
	if u == nil {
		return nil, fmt.Errorf("insert user returned no row")
	}
	if _, err := tx.Exec(ctx, `INSERT INTO user_credentials (user_id, credential_hash, created_at) VALUES ($1,$2,$3)`,
		u.ID, nu.CredentialHash, created); err != nil {
		return nil, mapWriteErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapWriteErr(err)
	}
	return u, nil
}

func (s *Store) SetPhone(ctx context.Context, userID, phone string) error {
	_, err := s.pg.Exec(ctx, `UPDATE users SET phone=$2 WHERE id=$1`, userID, phone)
	return mapWriteErr(err)
}

func (s *Store) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pg.Exec(ctx, `UPDATE users SET last_login_at=$2 WHERE id=$1`, userID, at)
	return err
}
