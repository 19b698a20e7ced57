package memorystore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/open-rails/otpkit/core"
	"github.com/stretchr/testify/require"
)

var _ core.EphemeralStore = (*KV)(nil)

func TestKV_TakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()
	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Minute))

	v, ok, err := kv.Take(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", string(v))

	_, ok, err = kv.Take(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKV_Expiry(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()
	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, ok, err := kv.Take(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCodeStore_LatestActiveAndCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewCodeStore()
	now := time.Now()
	require.NoError(t, s.InsertCode(ctx, core.OTPCode{ID: "old", Phone: "+15550000000", CreatedAt: now.Add(-2 * time.Minute), ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.InsertCode(ctx, core.OTPCode{ID: "new", Phone: "+15550000000", CreatedAt: now.Add(-time.Minute), ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.InsertCode(ctx, core.OTPCode{ID: "expired", Phone: "+15550000000", CreatedAt: now, ExpiresAt: now.Add(-time.Second)}))

	row, err := s.LatestActiveCode(ctx, "+15550000000", now)
	require.NoError(t, err)
	require.Equal(t, "new", row.ID)

	for i := 0; i < 10; i++ {
		_, ok, err := s.IncrementAttempts(ctx, "new", 6)
		require.NoError(t, err)
		require.True(t, ok)
	}
	n, _, _ := s.IncrementAttempts(ctx, "new", 6)
	require.Equal(t, 6, n)

	burned, err := s.BurnActive(ctx, "+15550000000", "new", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, burned)

	burned, err = s.BurnExpired(ctx, now, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, burned)
	require.Len(t, s.Codes("+15550000000"), 3)
}

func TestIdentityStore_Uniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore()
	u, err := s.CreateUser(ctx, core.NewUser{Email: "A@x.com", Phone: "+15551112222"})
	require.NoError(t, err)
	require.Equal(t, "a@x.com", u.Email)

	_, err = s.CreateUser(ctx, core.NewUser{Email: "a@X.com"})
	require.True(t, errors.Is(err, core.ErrDuplicateIdentity))

	_, err = s.CreateUser(ctx, core.NewUser{Email: "b@x.com", Phone: "+15551112222"})
	require.True(t, errors.Is(err, core.ErrDuplicateIdentity))

	other, err := s.CreateUser(ctx, core.NewUser{Email: "c@x.com"})
	require.NoError(t, err)
	require.True(t, errors.Is(s.SetPhone(ctx, other.ID, "+15551112222"), core.ErrDuplicateIdentity))
	require.Equal(t, 2, s.Count())
}

func TestSessionStore_RotateAndReuse(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()
	now := time.Now()
	require.NoError(t, s.CreateSession(ctx, core.RefreshSession{ID: "s1", FamilyID: "f1", UserID: "u1", CurrentTokenHash: "h1"}))

	rs, err := s.RotateSession(ctx, "h1", "h2", now)
	require.NoError(t, err)
	require.Equal(t, "u1", rs.UserID)

	_, err = s.RotateSession(ctx, "h1", "h3", now)
	require.ErrorIs(t, err, core.ErrRefreshReuse)

	_, err = s.RotateSession(ctx, "h2", "h4", now)
	require.ErrorIs(t, err, core.ErrSessionNotFound)
}
