package queue

import (
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy decides how long a failed delivery waits before its next
// attempt. attempt is the number of failures so far, starting at 1.
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// NewRetryPolicy builds the policy named by mode. An empty mode is linear.
func NewRetryPolicy(mode string, baseDelay time.Duration, jitter bool) (RetryPolicy, error) {
	if baseDelay <= 0 {
		return nil, fmt.Errorf("retry base delay must be positive, got %s", baseDelay)
	}
	switch mode {
	case "", BackoffLinear:
		return LinearBackoff{Delay: baseDelay}, nil
	case BackoffExponential:
		return NewRetryManager(baseDelay, jitter), nil
	default:
		return nil, fmt.Errorf("unknown backoff mode %q", mode)
	}
}

// LinearBackoff waits the same delay after every failure.
type LinearBackoff struct {
	Delay time.Duration
}

func (b LinearBackoff) NextDelay(int) time.Duration {
	return b.Delay
}

// RetryManager implements exponential backoff capped at 16x the base delay
type RetryManager struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    bool
}

// NewRetryManager creates a new RetryManager
func NewRetryManager(baseDelay time.Duration, jitter bool) *RetryManager {
	return &RetryManager{
		baseDelay: baseDelay,
		maxDelay:  baseDelay * 16,
		jitter:    jitter,
	}
}

// NextDelay calculates exponential backoff delay: base * 2^(attempt-1)
func (r *RetryManager) NextDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return r.baseDelay
	}

	shift := attempt - 1
	if shift > 4 {
		shift = 4
	}
	backoff := r.baseDelay * time.Duration(1<<shift)

	// Apply jitter (±25%)
	if r.jitter {
		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		if rand.Intn(2) == 0 {
			backoff += jitter
		} else {
			backoff -= jitter
		}
	}

	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}

	return backoff
}
