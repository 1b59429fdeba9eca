package lib

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

func NewScheduler() (gocron.Scheduler, error) {
	return gocron.NewScheduler(gocron.WithLocation(time.UTC))
}

// AddIntervalJob registers task to run every interval. A run that overlaps
// the previous one is skipped.
func AddIntervalJob(s gocron.Scheduler, name string, every time.Duration, task func()) (gocron.Job, error) {
	j, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	Logger().Info("[scheduler] job registered", zap.String("job", name), zap.Duration("every", every))
	return j, nil
}
