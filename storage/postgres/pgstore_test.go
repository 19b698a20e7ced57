package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/open-rails/otpkit/core"
	pgmigrations "github.com/open-rails/otpkit/migrations/postgres"
	"github.com/stretchr/testify/require"
)

func TestMapWriteErr(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_uniq"})
	require.ErrorIs(t, mapWriteErr(dup), core.ErrDuplicateIdentity)

	other := &pgconn.PgError{Code: "23503"}
	require.Equal(t, error(other), mapWriteErr(other))
	require.NoError(t, mapWriteErr(nil))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("OTPKIT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("OTPKIT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	sqlDB, err := sql.Open("pgx", url)
	require.NoError(t, err)
	defer sqlDB.Close()
	_, err = pgmigrations.Migrate(ctx, sqlDB)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return New(pool)
}

func uniquePhone() string {
	return "+1999" + fmt.Sprintf("%07d", time.Now().UnixNano()%10_000_000)
}

func TestStore_AttemptsCeilingUnderConcurrency(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()
	id := uuid.NewString()
	require.NoError(t, s.InsertCode(ctx, core.OTPCode{ID: id, Phone: uniquePhone(), CodeHash: "h", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.IncrementAttempts(ctx, id, 6)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	n, ok, err := s.IncrementAttempts(ctx, id, 6)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 6, n)

	require.NoError(t, s.MarkVerified(ctx, id))
	_, ok, err = s.IncrementAttempts(ctx, id, 6)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_LatestActiveAndBurn(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := uniquePhone()
	now := time.Now()
	oldID, newID := uuid.NewString(), uuid.NewString()
	require.NoError(t, s.InsertCode(ctx, core.OTPCode{ID: oldID, Phone: p, CodeHash: "a", CreatedAt: now.Add(-2 * time.Minute), ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.InsertCode(ctx, core.OTPCode{ID: newID, Phone: p, CodeHash: "b", CreatedAt: now.Add(-time.Minute), ExpiresAt: now.Add(time.Minute)}))

	row, err := s.LatestActiveCode(ctx, p, now)
	require.NoError(t, err)
	require.Equal(t, newID, row.ID)

	last, ok, err := s.LastIssuedAt(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	require.WithinDuration(t, now.Add(-time.Minute), last, time.Millisecond)

	n, err := s.BurnActive(ctx, p, newID, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = s.BurnExpired(ctx, now.Add(2*time.Minute), 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	row, err = s.LatestActiveCode(ctx, p, now)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestStore_CreateUserRace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateUser(ctx, core.NewUser{Email: email, AccountType: "user", CredentialHash: "x"})
		}(i)
	}
	wg.Wait()
	dup := 0
	for _, err := range errs {
		if errors.Is(err, core.ErrDuplicateIdentity) {
			dup++
		} else {
			require.NoError(t, err)
		}
	}
	require.Equal(t, 1, dup)

	u, err := s.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, u)

	p := uniquePhone()
	require.NoError(t, s.SetPhone(ctx, u.ID, p))
	other, err := s.CreateUser(ctx, core.NewUser{Email: uuid.NewString() + "@example.com", CredentialHash: "x"})
	require.NoError(t, err)
	require.ErrorIs(t, s.SetPhone(ctx, other.ID, p), core.ErrDuplicateIdentity)
}

func TestStore_RotateSessionReuse(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, core.NewUser{Email: uuid.NewString() + "@example.com", CredentialHash: "x"})
	require.NoError(t, err)
	now := time.Now()
	h1, h2 := uuid.NewString(), uuid.NewString()
	require.NoError(t, s.CreateSession(ctx, core.RefreshSession{ID: uuid.NewString(), FamilyID: uuid.NewString(), UserID: u.ID, CurrentTokenHash: h1, CreatedAt: now, LastUsedAt: now}))

	rs, err := s.RotateSession(ctx, h1, h2, now)
	require.NoError(t, err)
	require.Equal(t, u.ID, rs.UserID)

	_, err = s.RotateSession(ctx, h1, uuid.NewString(), now)
	require.ErrorIs(t, err, core.ErrRefreshReuse)
	_, err = s.RotateSession(ctx, h2, uuid.NewString(), now)
	require.ErrorIs(t, err, core.ErrSessionNotFound)
}
