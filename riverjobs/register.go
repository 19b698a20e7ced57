package riverjobs

import (
	"fmt"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// DefaultExpireStaleCodesSchedule runs the sweep every 15 minutes.
const DefaultExpireStaleCodesSchedule = "*/15 * * * *"

// RegisterExpireStaleCodesWorker registers the sweep worker into a River workers registry.
func RegisterExpireStaleCodesWorker(ws *river.Workers, svc CodeSweeper) {
	river.AddWorker(ws, NewExpireStaleCodesWorker(svc))
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(cronSpec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule '%s': %w", cronSpec, err)
	}
	return schedule, nil
}

// AddExpireStaleCodesPeriodicJob enqueues the sweep on a cron schedule.
func AddExpireStaleCodesPeriodicJob[T any](client *river.Client[T], cronSpec string, args ExpireStaleCodesArgs, runOnStart bool) error {
	if cronSpec == "" {
		cronSpec = DefaultExpireStaleCodesSchedule
	}
	schedule, err := ParseSchedule(cronSpec)
	if err != nil {
		return err
	}
	opts := args.InsertOpts()
	_ = client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) { return args, &opts },
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		),
	)
	return nil
}
