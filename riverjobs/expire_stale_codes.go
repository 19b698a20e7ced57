package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

// CodeSweeper burns expired verification codes. *core.Service implements it.
type CodeSweeper interface {
	SweepExpiredCodes(ctx context.Context, limit int) (int64, error)
}

type ExpireStaleCodesArgs struct {
	BatchSize int `json:"batch_size,omitempty"`
	// MaxBatches bounds one run; zero means 20.
	MaxBatches int `json:"max_batches,omitempty"`
}

func (ExpireStaleCodesArgs) Kind() string { return "otpkit_expire_stale_codes" }

func (args ExpireStaleCodesArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 5 * time.Minute,
			ByQueue:  true,
		},
	}
}

// ExpireStaleCodesWorker marks expired, unverified codes verified in batches. Rows are
// never deleted.
type ExpireStaleCodesWorker struct {
	river.WorkerDefaults[ExpireStaleCodesArgs]
	svc CodeSweeper
	log *logrus.Logger
}

func NewExpireStaleCodesWorker(svc CodeSweeper) *ExpireStaleCodesWorker {
	return &ExpireStaleCodesWorker{svc: svc, log: logrus.StandardLogger()}
}

func (w *ExpireStaleCodesWorker) Timeout(*river.Job[ExpireStaleCodesArgs]) time.Duration {
	return 2 * time.Minute
}

func (w *ExpireStaleCodesWorker) Work(ctx context.Context, job *river.Job[ExpireStaleCodesArgs]) error {
	if w == nil || w.svc == nil {
		return errors.New("otpkit sweep: service not configured")
	}
	batch := job.Args.BatchSize
	if batch <= 0 {
		batch = 1000
	}
	maxBatches := job.Args.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 20
	}

	var total int64
	for i := 0; i < maxBatches; i++ {
		n, err := w.svc.SweepExpiredCodes(ctx, batch)
		if err != nil {
			return err
		}
		total += n
		if n < int64(batch) {
			break
		}
	}
	w.log.WithContext(ctx).WithField("burned", total).Debug("otpkit sweep finished")
	return nil
}
