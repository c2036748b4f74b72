package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchPurger struct {
	batches []int64
	calls   int
	err     error
}

func (p *batchPurger) PurgeExpired(ctx context.Context, limit int) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.calls >= len(p.batches) {
		return 0, nil
	}
	n := p.batches[p.calls]
	p.calls++
	return n, nil
}

func TestHoldCleanupWorker_DrainsInBatches(t *testing.T) {
	p := &batchPurger{batches: []int64{2, 2, 1}}
	w := NewHoldCleanupWorker(p, 0, 2)

	total, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, 3, p.calls)
}

func TestHoldCleanupWorker_PropagatesErrors(t *testing.T) {
	p := &batchPurger{err: errors.New("db down")}
	w := NewHoldCleanupWorker(p, 0, 0)

	_, err := w.Cleanup(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestHoldCleanupWorker_StopsOnCanceledContext(t *testing.T) {
	p := &batchPurger{batches: []int64{2}}
	w := NewHoldCleanupWorker(p, 0, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Cleanup(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.calls)
}
