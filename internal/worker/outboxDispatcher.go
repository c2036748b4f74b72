package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/ds124wfegd/tithi-booking/pkg/queue"
	"github.com/ds124wfegd/tithi-booking/pkg/scheduler"
	"github.com/sirupsen/logrus"
)

// DeadLetterRecorder keeps a copy of events that ran out of attempts.
type DeadLetterRecorder interface {
	Record(ctx context.Context, event *entity.OutboxEvent) error
}

type Dispatcher struct {
	store      database.Store
	handler    Handler
	retry      queue.RetryPolicy
	dead       DeadLetterRecorder
	clock      clock.Clock
	batchLimit int
}

// NewDispatcher wires the outbox to handler. dead may be nil.
func NewDispatcher(
	store database.Store,
	handler Handler,
	retry queue.RetryPolicy,
	dead DeadLetterRecorder,
	c clock.Clock,
	batchLimit int,
) *Dispatcher {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Dispatcher{
		store:      store,
		handler:    handler,
		retry:      retry,
		dead:       dead,
		clock:      c,
		batchLimit: batchLimit,
	}
}

// DispatchOnce attempts every event that is ready now, each in its own
// transaction, and returns how many were attempted.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	events, err := d.store.Outbox().ListReady(ctx, d.clock.Now(), d.batchLimit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		attempted, err := d.dispatch(ctx, e.ID)
		if err != nil {
			logrus.WithError(err).WithField("event_id", e.ID).Error("Failed to record outbox delivery")
			continue
		}
		if attempted {
			processed++
		}
	}
	return processed, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, id string) (bool, error) {
	var (
		attempted bool
		terminal  *entity.OutboxEvent
	)
	err := d.store.WithTx(ctx, func(tx database.Tx) error {
		now := d.clock.Now()
		event, err := tx.Outbox().Claim(ctx, id, now)
		if err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		attempted = true

		log := logrus.WithFields(logrus.Fields{
			"tenant_id":  event.TenantID,
			"event_code": event.EventCode,
			"event_id":   event.ID,
		})

		if herr := d.safeHandle(ctx, event); herr != nil {
			backoff := d.retry.NextDelay(event.Attempts + 1)
			if event.MarkAttemptFailed(now, herr, backoff) {
				cp := *event
				terminal = &cp
				log.WithField("attempts", event.Attempts).WithError(herr).Error("EVENT_FAILED permanently")
			} else {
				log.WithFields(logrus.Fields{
					"attempts": event.Attempts,
					"ready_at": event.ReadyAt,
				}).WithError(herr).Warn("EVENT_FAILED")
			}
		} else {
			event.MarkDelivered(now)
			log.WithField("attempts", event.Attempts).Info("EVENT_PROCESSED")
		}
		return tx.Outbox().Update(ctx, event)
	})
	if err != nil {
		return false, err
	}

	if terminal != nil && d.dead != nil {
		if err := d.dead.Record(ctx, terminal); err != nil {
			logrus.WithError(err).WithField("event_id", terminal.ID).Error("Failed to record dead letter")
		}
	}
	return attempted, nil
}

func (d *Dispatcher) safeHandle(ctx context.Context, event *entity.OutboxEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return d.handler.Handle(ctx, event)
}

// Run dispatches on every tick until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	scheduler.NewScheduler("outbox-dispatcher", interval, func(ctx context.Context) error {
		n, err := d.DispatchOnce(ctx)
		if n > 0 {
			logrus.WithField("processed", n).Debug("Outbox batch dispatched")
		}
		return err
	}).Start(ctx)
}
