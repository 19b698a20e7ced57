package pgstore

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-rails/otpkit/core"
)

// Store implements core.CodeStore, core.IdentityStore and core.SessionStore on Postgres.
// The schema lives in migrations/postgres.
type Store struct {
	pg *pgxpool.Pool
}

func New(pg *pgxpool.Pool) *Store {
	return &Store{pg: pg}
}

var (
	_ core.CodeStore     = (*Store)(nil)
	_ core.IdentityStore = (*Store)(nil)
	_ core.SessionStore  = (*Store)(nil)
)

const pgUniqueViolation = "23505"

// mapWriteErr turns a unique violation into core.ErrDuplicateIdentity.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return core.ErrDuplicateIdentity
	}
	return err
}

func noRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
