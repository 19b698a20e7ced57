package riverjobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	batches []int64
	calls   int
	err     error
}

func (f *fakeSweeper) SweepExpiredCodes(ctx context.Context, limit int) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.batches) {
		f.calls++
		return 0, nil
	}
	n := f.batches[f.calls]
	f.calls++
	return n, nil
}

func TestExpireStaleCodesWorker_DrainsFullBatches(t *testing.T) {
	sw := &fakeSweeper{batches: []int64{10, 10, 3}}
	w := NewExpireStaleCodesWorker(sw)
	err := w.Work(context.Background(), &river.Job[ExpireStaleCodesArgs]{Args: ExpireStaleCodesArgs{BatchSize: 10}})
	require.NoError(t, err)
	require.Equal(t, 3, sw.calls)
}

func TestExpireStaleCodesWorker_StopsAtMaxBatches(t *testing.T) {
	sw := &fakeSweeper{batches: []int64{5, 5, 5, 5}}
	w := NewExpireStaleCodesWorker(sw)
	err := w.Work(context.Background(), &river.Job[ExpireStaleCodesArgs]{Args: ExpireStaleCodesArgs{BatchSize: 5, MaxBatches: 2}})
	require.NoError(t, err)
	require.Equal(t, 2, sw.calls)
}

func TestExpireStaleCodesWorker_PropagatesErrors(t *testing.T) {
	w := NewExpireStaleCodesWorker(&fakeSweeper{err: errors.New("db down")})
	err := w.Work(context.Background(), &river.Job[ExpireStaleCodesArgs]{})
	require.EqualError(t, err, "db down")
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule(DefaultExpireStaleCodesSchedule)
	require.NoError(t, err)
	from := time.Date(2025, 1, 1, 10, 1, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, 1, 1, 10, 15, 0, 0, time.UTC), s.Next(from))

	_, err = ParseSchedule("not a cron")
	require.Error(t, err)
}

func TestArgsKindAndUniqueness(t *testing.T) {
	args := ExpireStaleCodesArgs{}
	require.Equal(t, "otpkit_expire_stale_codes", args.Kind())
	require.True(t, args.InsertOpts().UniqueOpts.ByArgs)
}
