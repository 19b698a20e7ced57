package memorylimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := New(map[string]Limit{"send_otp": {Limit: 2, Window: time.Minute}})
	l.now = func() time.Time { return now }

	ok, err := l.AllowNamed(ctx, "send_otp", "ip:1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = l.AllowNamed(ctx, "send_otp", "ip:1")
	require.True(t, ok)
	ok, _ = l.AllowNamed(ctx, "send_otp", "ip:1")
	require.False(t, ok)

	ok, _ = l.AllowNamed(ctx, "send_otp", "ip:2")
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = l.AllowNamed(ctx, "send_otp", "ip:1")
	require.True(t, ok)

	now = now.Add(10 * time.Minute)
	l.Prune()
	require.Empty(t, l.buckets)
}

func TestLimiter_RequiresKey(t *testing.T) {
	_, err := New(nil).AllowNamed(context.Background(), "b", "")
	require.Error(t, err)
}
