package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsUntilCanceled(t *testing.T) {
	var runs int32
	s := NewScheduler("test", 5*time.Millisecond, func(ctx context.Context) error {
		n := atomic.AddInt32(&runs, 1)
		if n == 1 {
			return errors.New("first run fails")
		}
		if n == 2 {
			panic("second run panics")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
