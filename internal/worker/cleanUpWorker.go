package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// HoldPurger is implemented by service.HoldService.
type HoldPurger interface {
	PurgeExpired(ctx context.Context, limit int) (int64, error)
}

// HoldCleanupWorker physically removes expired hold rows. Expired holds
// already stop blocking the moment they expire; this only reclaims space.
type HoldCleanupWorker struct {
	holds     HoldPurger
	interval  time.Duration
	batchSize int
}

func NewHoldCleanupWorker(holds HoldPurger, interval time.Duration, batchSize int) *HoldCleanupWorker {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &HoldCleanupWorker{
		holds:     holds,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (w *HoldCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Hold cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Hold cleanup worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				logrus.Errorf("Failed to purge expired holds: %v", err)
			}
		}
	}
}

// Cleanup deletes expired holds batch by batch until a batch comes back
// short.
func (w *HoldCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := w.holds.PurgeExpired(ctx, w.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(w.batchSize) {
			break
		}
	}

	if total > 0 {
		logrus.Infof("Expired holds cleanup completed: %d removed", total)
	}
	return total, nil
}
