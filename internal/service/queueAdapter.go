package service

import (
	"context"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/queue"
)

// QueueAdapter records outbox events that exhausted their attempts in a
// queue.DLQHandler.
type QueueAdapter struct {
	dlq queue.DLQHandler
}

func NewQueueAdapter(dlq queue.DLQHandler) *QueueAdapter {
	return &QueueAdapter{dlq: dlq}
}

// Record copies a terminally failed event into the dead letter queue.
func (a *QueueAdapter) Record(ctx context.Context, event *entity.OutboxEvent) error {
	if a.dlq == nil {
		return nil
	}
	return a.dlq.Push(ctx, deadLetterFromEvent(event))
}

func deadLetterFromEvent(e *entity.OutboxEvent) *queue.DeadLetter {
	dl := &queue.DeadLetter{
		ID:        e.ID,
		TenantID:  e.TenantID,
		EventCode: e.EventCode,
		Payload:   map[string]interface{}(e.Payload.Clone()),
		Attempts:  e.Attempts,
	}
	if e.ErrorMessage != nil {
		dl.Error = *e.ErrorMessage
	}
	if e.FailedAt != nil {
		dl.FailedAt = *e.FailedAt
	} else if e.LastAttemptAt != nil {
		dl.FailedAt = *e.LastAttemptAt
	}
	return dl
}
