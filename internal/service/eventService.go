package service

import (
	"context"
	"errors"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/ds124wfegd/tithi-booking/pkg/queue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type outboxService struct {
	store database.Store
	dlq   queue.DLQHandler
	clock clock.Clock
	opts  Options
}

func NewOutboxService(store database.Store, dlq queue.DLQHandler, c clock.Clock, opts Options) OutboxService {
	return &outboxService{
		store: store,
		dlq:   dlq,
		clock: c,
		opts:  opts,
	}
}

func (s *outboxService) ListEvents(ctx context.Context, tenantID string, status entity.OutboxStatus, limit int) ([]*entity.OutboxEvent, error) {
	if status != "" && !status.Valid() {
		return nil, entity.ValidationError(map[string]string{"status": "must be one of ready, delivered, failed"})
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Outbox().ListByStatus(ctx, tenantID, status, limit)
}

func (s *outboxService) ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]*queue.DeadLetter, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	letters, err := s.dlq.List(ctx, tenantID, limit)
	if err != nil {
		return nil, entity.Transient("list dead letters", err)
	}
	if letters == nil {
		letters = []*queue.DeadLetter{}
	}
	return letters, nil
}

// RequeueDeadLetter enqueues a fresh copy of a dead event with a full
// attempt budget and removes it from the dead letter queue.
func (s *outboxService) RequeueDeadLetter(ctx context.Context, tenantID, id string) (*entity.OutboxEvent, error) {
	dl, err := s.dlq.Get(ctx, tenantID, id)
	if errors.Is(err, queue.ErrDeadLetterNotFound) {
		return nil, entity.ErrDeadLetterNotFound
	}
	if err != nil {
		return nil, entity.Transient("get dead letter", err)
	}

	now := s.clock.Now()
	payload := entity.JSONMap(dl.Payload).Clone()
	if payload == nil {
		payload = entity.JSONMap{}
	}
	payload["requeued_from"] = dl.ID

	event := &entity.OutboxEvent{
		ID:          uuid.NewString(),
		TenantID:    dl.TenantID,
		EventCode:   dl.EventCode,
		Payload:     payload,
		Status:      entity.OutboxStatusReady,
		MaxAttempts: s.opts.MaxAttempts,
		ReadyAt:     now,
		CreatedAt:   now,
	}
	err = s.store.WithTx(ctx, func(tx database.Tx) error {
		return tx.Outbox().Enqueue(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	if err := s.dlq.Delete(ctx, tenantID, id); err != nil && !errors.Is(err, queue.ErrDeadLetterNotFound) {
		logrus.WithError(err).WithField("event_id", id).Warn("Requeued event is still in the dead letter queue")
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"event_id":   event.ID,
		"event_code": event.EventCode,
		"source_id":  id,
	}).Info("Dead letter requeued")
	return event, nil
}

// DeadLetterStats summarizes the tenant's dead letters.
func (s *outboxService) DeadLetterStats(ctx context.Context, tenantID string) (*queue.DLQStats, error) {
	stats, err := s.dlq.Stats(ctx, tenantID)
	if err != nil {
		return nil, entity.Transient("dead letter stats", err)
	}
	return stats, nil
}
