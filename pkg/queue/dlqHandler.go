package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

var ErrDeadLetterNotFound = errors.New("dead letter not found")

// DeadLetter is a copy of an event that exhausted its delivery attempts,
// kept for operators.
type DeadLetter struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id"`
	EventCode string                 `json:"event_code"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	Error     string                 `json:"error"`
	FailedAt  time.Time              `json:"failed_at"`
}

// DLQStats contains statistics about the Dead Letter Queue
type DLQStats struct {
	QueueSize     int64     `json:"queue_size"`
	OldestFailure time.Time `json:"oldest_failure,omitempty"`
	NewestFailure time.Time `json:"newest_failure,omitempty"`
}

// DLQHandler stores terminally failed events.
type DLQHandler interface {
	Push(ctx context.Context, dl *DeadLetter) error
	List(ctx context.Context, tenantID string, limit int) ([]*DeadLetter, error)
	Get(ctx context.Context, tenantID, id string) (*DeadLetter, error)
	Delete(ctx context.Context, tenantID, id string) error
	Stats(ctx context.Context, tenantID string) (*DLQStats, error)
}

// RedisDLQHandler keeps dead letters in a sorted set scored by failure time.
type RedisDLQHandler struct {
	client *redis.Client
	dlq    string
}

func NewRedisDLQHandler(client *redis.Client, dlq string) *RedisDLQHandler {
	return &RedisDLQHandler{
		client: client,
		dlq:    dlq,
	}
}

func (d *RedisDLQHandler) Push(ctx context.Context, dl *DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	score := float64(dl.FailedAt.UnixNano()) / 1e9
	if err := d.client.ZAdd(ctx, d.dlq, &redis.Z{Score: score, Member: data}).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id":   dl.ID,
		"event_code": dl.EventCode,
		"tenant_id":  dl.TenantID,
	}).Warn("Event moved to dead letter queue")
	return nil
}

// all returns every member, newest failure first, alongside its raw form.
func (d *RedisDLQHandler) all(ctx context.Context) ([]*DeadLetter, []string, error) {
	members, err := d.client.ZRevRangeByScore(ctx, d.dlq, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	letters := make([]*DeadLetter, 0, len(members))
	raws := make([]string, 0, len(members))
	for _, m := range members {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(m), &dl); err != nil {
			logrus.Errorf("Failed to unmarshal dead letter: %v", err)
			continue
		}
		letters = append(letters, &dl)
		raws = append(raws, m)
	}
	return letters, raws, nil
}

func (d *RedisDLQHandler) List(ctx context.Context, tenantID string, limit int) ([]*DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	letters, _, err := d.all(ctx)
	if err != nil {
		return nil, err
	}

	var out []*DeadLetter
	for _, dl := range letters {
		if dl.TenantID != tenantID {
			continue
		}
		out = append(out, dl)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (d *RedisDLQHandler) Get(ctx context.Context, tenantID, id string) (*DeadLetter, error) {
	letters, _, err := d.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, dl := range letters {
		if dl.TenantID == tenantID && dl.ID == id {
			return dl, nil
		}
	}
	return nil, ErrDeadLetterNotFound
}

func (d *RedisDLQHandler) Delete(ctx context.Context, tenantID, id string) error {
	letters, raws, err := d.all(ctx)
	if err != nil {
		return err
	}
	for i, dl := range letters {
		if dl.TenantID == tenantID && dl.ID == id {
			if err := d.client.ZRem(ctx, d.dlq, raws[i]).Err(); err != nil {
				return fmt.Errorf("failed to delete dead letter: %w", err)
			}
			return nil
		}
	}
	return ErrDeadLetterNotFound
}

// Stats summarizes the dead letters of one tenant.
func (d *RedisDLQHandler) Stats(ctx context.Context, tenantID string) (*DLQStats, error) {
	letters, _, err := d.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ stats: %w", err)
	}
	return tenantStats(letters, tenantID), nil
}

func tenantStats(letters []*DeadLetter, tenantID string) *DLQStats {
	stats := &DLQStats{}
	for _, dl := range letters {
		if dl.TenantID != tenantID {
			continue
		}
		stats.QueueSize++
		if stats.OldestFailure.IsZero() || dl.FailedAt.Before(stats.OldestFailure) {
			stats.OldestFailure = dl.FailedAt
		}
		if dl.FailedAt.After(stats.NewestFailure) {
			stats.NewestFailure = dl.FailedAt
		}
	}
	return stats
}

// MemoryDLQHandler is the process-local dead letter store used when redis
// is not configured.
type MemoryDLQHandler struct {
	mu      sync.Mutex
	letters []*DeadLetter
}

func NewMemoryDLQHandler() *MemoryDLQHandler {
	return &MemoryDLQHandler{}
}

func (m *MemoryDLQHandler) Push(ctx context.Context, dl *DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *dl
	m.letters = append(m.letters, &cp)
	return nil
}

func (m *MemoryDLQHandler) List(ctx context.Context, tenantID string, limit int) ([]*DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*DeadLetter
	for _, dl := range m.letters {
		if dl.TenantID == tenantID {
			cp := *dl
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDLQHandler) Get(ctx context.Context, tenantID, id string) (*DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dl := range m.letters {
		if dl.TenantID == tenantID && dl.ID == id {
			cp := *dl
			return &cp, nil
		}
	}
	return nil, ErrDeadLetterNotFound
}

func (m *MemoryDLQHandler) Delete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, dl := range m.letters {
		if dl.TenantID == tenantID && dl.ID == id {
			m.letters = append(m.letters[:i], m.letters[i+1:]...)
			return nil
		}
	}
	return ErrDeadLetterNotFound
}

func (m *MemoryDLQHandler) Stats(ctx context.Context, tenantID string) (*DLQStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return tenantStats(m.letters, tenantID), nil
}
