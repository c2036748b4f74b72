package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one run of a periodic task.
type Job func(ctx context.Context) error

type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
}

func NewScheduler(name string, interval time.Duration, job Job) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
	}
}

// Start runs the job every interval until ctx is canceled. A failed run is
// logged and the next tick runs normally.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"job":      s.name,
		"interval": s.interval.String(),
	}).Info("Scheduler started")

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			logrus.WithField("job", s.name).Info("Scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"job":   s.name,
				"panic": r,
			}).Error("Scheduled job panicked")
		}
	}()

	if err := s.job(ctx); err != nil {
		logrus.WithError(err).WithField("job", s.name).Error("Scheduled job failed")
	}
}
